package api

// docsHTML renders /openapi.json with Stoplight Elements and links to the
// event stream reference, which OpenAPI cannot describe.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>REP+ Replay API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    .repplus-links {
      position: fixed;
      top: 12px;
      right: 16px;
      z-index: 9999;
      display: flex;
      gap: 8px;
    }
    .repplus-links a {
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
      color: #58a6ff;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      font-size: 12px;
      font-weight: 500;
      padding: 5px 12px;
      text-decoration: none;
    }
  </style>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <div class="repplus-links">
    <a href="/docs/events">Event Stream Docs</a>
    <a href="/openapi.json">openapi.json</a>
  </div>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`
