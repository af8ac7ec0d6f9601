package mail

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type welcomeData struct {
	Name            string
	VerificationURL string
	Year            int
}

type resetData struct {
	Name     string
	ResetURL string
	Year     int
}

func renderWelcome(name, verificationURL string) (string, error) {
	return renderTemplate("welcome.html", welcomeData{
		Name:            name,
		VerificationURL: verificationURL,
		Year:            time.Now().Year(),
	})
}

func renderPasswordReset(name, resetURL string) (string, error) {
	return renderTemplate("reset_password.html", resetData{
		Name:     name,
		ResetURL: resetURL,
		Year:     time.Now().Year(),
	})
}
