package cmd

import (
	"embed"
	"strings"
)

//go:embed web/dashboard.html web/styles.css web/script.js
var webAssets embed.FS

// generateDashboardHTML inlines the stylesheet and script into the page so
// it can be served from a single route
func generateDashboardHTML() string {
	htmlContent, err := webAssets.ReadFile("web/dashboard.html")
	if err != nil {
		return fallbackHTML()
	}
	cssContent, err := webAssets.ReadFile("web/styles.css")
	if err != nil {
		return fallbackHTML()
	}
	jsContent, err := webAssets.ReadFile("web/script.js")
	if err != nil {
		return fallbackHTML()
	}

	html := string(htmlContent)
	html = strings.Replace(html, `    <link rel="stylesheet" href="styles.css">`,
		`    <style>`+"\n"+string(cssContent)+"\n"+`    </style>`, 1)
	html = strings.Replace(html, `    <script src="script.js"></script>`,
		`    <script>`+"\n"+string(jsContent)+"\n"+`    </script>`, 1)

	return html
}

var dashboardHTML = generateDashboardHTML()

func fallbackHTML() string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Country Compare</title>
</head>
<body>
    <h1>Dashboard Unavailable</h1>
    <p>The embedded web assets could not be loaded.</p>
</body>
</html>`
}
