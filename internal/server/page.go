package server

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Geotechnical Engineering Tutor</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/katex.min.css">
<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/katex.min.js"></script>
<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/contrib/auto-render.min.js" onload="renderHistory()"></script>
<script>
function renderHistory() {
  var el = document.getElementById("history");
  if (!el) { return; }
  renderMathInElement(el, {
    delimiters: [
      {left: "$$", right: "$$", display: true},
      {left: "$", right: "$", display: false}
    ],
    throwOnError: false
  });
}
</script>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
.overview { color: #666; font-size: 0.9rem; }
.error { background: #fde8e8; color: #9b1c1c; padding: 0.6rem; border-radius: 4px; }
.turn { border-bottom: 1px solid #ddd; padding: 0.6rem 0; white-space: pre-wrap; }
form { display: flex; gap: 0.5rem; margin: 1rem 0; }
input[type=text] { flex: 1; padding: 0.4rem; }
</style>
</head>
<body>
<h1>Welcome! How may I help you?</h1>
{{with .Overview}}<p class="overview">{{.}}</p>{{end}}
<form method="post" action="/">
<input type="text" name="question" placeholder="Ask a question:" autocomplete="off" autofocus>
<button type="submit">Send</button>
</form>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{if .History}}
<h2>Chat History</h2>
<div id="history">
{{range .History}}<div class="turn"><strong>You:</strong> {{.Question}}
<strong>Bot:</strong> {{.Answer}}</div>
{{end}}</div>
{{end}}
</body>
</html>
`
