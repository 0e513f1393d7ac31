package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusPageHandler serves a minimal human-facing status page at /.
// Operational clients should use /mcp/info and /mcp/health instead.
func (s *Server) statusPageHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(statusPageHTML))
}

const statusPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>FinGate</title>
<style>
  body { font-family: -apple-system, sans-serif; background: #0d1117; color: #c9d1d9; margin: 0; padding: 40px; }
  .card { max-width: 640px; margin: 0 auto; background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 32px; }
  h1 { margin-top: 0; color: #58a6ff; }
  code { background: #21262d; padding: 2px 6px; border-radius: 4px; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  td { padding: 8px 4px; border-bottom: 1px solid #21262d; }
  td:first-child { color: #8b949e; width: 40%; }
  #health { font-weight: 600; }
</style>
</head>
<body>
<div class="card">
  <h1>FinGate</h1>
  <p>Financial data gateway. JSON-RPC 2.0 over HTTP and WebSocket.</p>
  <table>
    <tr><td>Status</td><td id="health">checking&hellip;</td></tr>
    <tr><td>One-shot requests</td><td><code>POST /mcp/request</code></td></tr>
    <tr><td>Streaming</td><td><code>GET /ws</code></td></tr>
    <tr><td>Server info</td><td><code>GET /mcp/info</code></td></tr>
    <tr><td>Metrics</td><td><code>GET /metrics</code></td></tr>
  </table>
</div>
<script>
fetch('/mcp/health').then(function (r) { return r.json(); }).then(function (h) {
  var el = document.getElementById('health');
  el.textContent = h.status;
  el.style.color = h.status === 'healthy' ? '#3fb950' : '#f85149';
}).catch(function () {
  document.getElementById('health').textContent = 'unreachable';
});
</script>
</body>
</html>
`
