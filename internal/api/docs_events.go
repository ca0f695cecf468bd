package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream - REP+</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    a:hover { text-decoration: underline; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 24px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    main { max-width: 880px; margin: 0 auto; padding: 32px 24px 64px; }
    h1 { color: #e6edf3; font-size: 24px; margin-top: 0; }
    h2 { color: #e6edf3; font-size: 18px; border-bottom: 1px solid #21262d; padding-bottom: 6px; margin-top: 36px; }
    code { font-family: "SFMono-Regular", Consolas, monospace; font-size: 12.5px; background: #161b22; padding: 1px 5px; border-radius: 4px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 14px 16px; overflow-x: auto; }
    pre code { background: none; padding: 0; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #21262d; vertical-align: top; }
    th { color: #8b949e; font-weight: 500; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">REP+</span>
    <a href="/docs">REST API</a>
    <a href="/docs/events">Event Stream</a>
  </nav>
  <main>
    <h1>Event Stream</h1>
    <p>Every capture, clear, navigation, scan and replay is published to connected clients.
    Pick Server-Sent Events or a WebSocket; both carry the same JSON events.</p>

    <h2>Endpoints</h2>
    <table>
      <tr><th>Transport</th><th>URL</th></tr>
      <tr><td>SSE</td><td><code>GET /api/v1/events</code></td></tr>
      <tr><td>WebSocket</td><td><code>GET /api/v1/events/ws</code></td></tr>
    </table>
    <p>Add <code>?kinds=captured,scanned</code> to receive only some kinds.
    Slow clients have events dropped rather than stalling the service.</p>

    <h2>Event kinds</h2>
    <table>
      <tr><th>Kind</th><th>Payload</th></tr>
      <tr><td><code>captured</code></td><td>The new capture: <code>id</code>, <code>method</code>, <code>url</code>, <code>observed_at</code>.</td></tr>
      <tr><td><code>cleared</code></td><td>None. The capture list was emptied.</td></tr>
      <tr><td><code>navigated</code></td><td>None. The page finished loading; a scan follows.</td></tr>
      <tr><td><code>scanned</code></td><td><code>verdicts</code>, <code>summary</code>, <code>scanned_at</code>.</td></tr>
      <tr><td><code>replayed</code></td><td><code>method</code>, <code>url</code>, <code>status</code>, <code>status_text</code>, <code>elapsed_ms</code>.</td></tr>
    </table>

    <h2>SSE framing</h2>
<pre><code>event: captured
data: {"id":"0192f0c4-...","method":"GET","url":"https://api.example.com/items","observed_at":"2026-10-18T09:12:44Z"}

event: cleared
data: null
</code></pre>

    <h2>WebSocket framing</h2>
    <p>One text frame per event. Client frames are read and ignored.</p>
<pre><code>{"kind":"scanned","payload":{"verdicts":[],"summary":{"scripts":0,"clean":0,"sketchy":0},"scanned_at":"2026-10-18T09:12:45Z"}}
</code></pre>

    <h2>Quick test</h2>
<pre><code>curl -N http://127.0.0.1:8190/api/v1/events?kinds=replayed</code></pre>
  </main>
</body>
</html>`
