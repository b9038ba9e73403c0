package edge

// loginSuccessHTML is shown in the browser once the authorization code has
// been captured. Kept deliberately small: the page exists only so the user
// knows to return to the terminal.
const loginSuccessHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Successful - Edgeworks</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
        }
        h1 { color: #1f2937; font-size: 1.5rem; }
        p { color: #6b7280; line-height: 1.5; }
        .icon { font-size: 2.5rem; }
    </style>
</head>
<body>
    <div class="container">
        <div class="icon">&#10003;</div>
        <h1>Authentication Successful</h1>
        <p>You have successfully logged in to Edgeworks. You can close this window and return to your terminal.</p>
    </div>
    <script>setTimeout(function () { window.close(); }, 10000);</script>
</body>
</html>`

// loginPendingHTML is shown for stray or duplicate requests that do not
// resolve the pending attempt (e.g. browser prefetch hitting the listener).
const loginPendingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Edgeworks Login</title>
</head>
<body>
    <p>Waiting for authorization. Complete the login in your browser, then return to your terminal.</p>
</body>
</html>`

// loginFailureHTML is shown when the callback carried a provider error or
// failed validation. The %s placeholder receives a user-friendly message.
const loginFailureHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Authentication Failed - Edgeworks</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
        }
        h1 { color: #991b1b; font-size: 1.5rem; }
        p { color: #6b7280; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authentication Failed</h1>
        <p>%s</p>
        <p>Return to your terminal for details.</p>
    </div>
</body>
</html>`
