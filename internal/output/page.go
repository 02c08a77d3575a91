package output

import (
	"html/template"
	"net/http"
)

var pageTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CamStreamer</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #000;
            overflow: hidden;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
        }
        img {
            width: 100vw;
            height: 100vh;
            object-fit: contain;
            display: block;
            background: #000;
        }
        .nav-menu {
            position: fixed;
            bottom: 16px;
            left: 16px;
            display: flex;
            gap: 8px;
            opacity: 0;
            transition: opacity 0.2s ease;
        }
        .nav-menu:hover { opacity: 1; }
        .nav-link {
            padding: 8px 14px;
            background: rgba(40, 40, 40, 0.9);
            color: #ccc;
            text-decoration: none;
            border-radius: 20px;
            font-family: system-ui, -apple-system, sans-serif;
            font-size: 13px;
        }
        .nav-link:hover { color: #fff; }
    </style>
</head>
<body>
    <img src="{{.Stream}}" alt="CamStreamer Live Stream">
    <div class="nav-menu">
        <a href="{{.Snapshot}}" class="nav-link">Snapshot</a>
        <a href="/api/status" class="nav-link">Status</a>
    </div>
</body>
</html>`))

// ViewerPage returns a handler serving a minimal page that embeds the stream
func ViewerPage(streamPath, snapshotPath string) http.HandlerFunc {
	data := struct{ Stream, Snapshot string }{streamPath, snapshotPath}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		pageTemplate.Execute(w, data)
	}
}
