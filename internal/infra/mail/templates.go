package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	verificationSubject  = "🐻 Conferma la tua email per OrsoCook"
	passwordResetSubject = "🔐 Reimposta la tua password OrsoCook"
)

type templateData struct {
	Username    string
	ActionURL   string
	FrontendURL string
	ValidFor    string
}

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification.html").Parse(`<!DOCTYPE html>
<html lang="it">
<body style="font-family: Arial, sans-serif; color: #333;">
  <h1>Benvenuto su OrsoCook, {{.Username}}! 🐻</h1>
  <p>Grazie per esserti registrato. Conferma il tuo indirizzo email per iniziare a cucinare con noi.</p>
  <p><a href="{{.ActionURL}}" style="background:#e67e22;color:#fff;padding:12px 24px;border-radius:6px;text-decoration:none;">Conferma email</a></p>
  <p>Il link scade tra {{.ValidFor}}.</p>
  <p>Se il pulsante non funziona, copia questo indirizzo nel browser:<br>{{.ActionURL}}</p>
  <p style="font-size:12px;color:#888;"><a href="{{.FrontendURL}}">OrsoCook</a></p>
</body>
</html>`))

var verificationText = texttemplate.Must(texttemplate.New("verification.txt").Parse(`Ciao {{.Username}},

benvenuto su OrsoCook! Conferma il tuo indirizzo email visitando:
{{.ActionURL}}

Il link scade tra {{.ValidFor}}.
`))

var passwordResetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<!DOCTYPE html>
<html lang="it">
<body style="font-family: Arial, sans-serif; color: #333;">
  <h1>Ciao {{.Username}}</h1>
  <p>Abbiamo ricevuto una richiesta di reimpostazione della password per il tuo account OrsoCook.</p>
  <p><a href="{{.ActionURL}}" style="background:#e67e22;color:#fff;padding:12px 24px;border-radius:6px;text-decoration:none;">Reimposta password</a></p>
  <p>Il link scade tra {{.ValidFor}}. Se non hai richiesto tu il reset, ignora questa email.</p>
</body>
</html>`))

var passwordResetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Ciao {{.Username}},

reimposta la tua password OrsoCook visitando:
{{.ActionURL}}

Il link scade tra {{.ValidFor}}. Se non hai richiesto tu il reset, ignora questa email.
`))

type rendered struct {
	Subject string
	HTML    string
	Text    string
}

func render(subject string, html *htmltemplate.Template, text *texttemplate.Template, data templateData) (rendered, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return rendered{}, fmt.Errorf("render %s: %w", html.Name(), err)
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return rendered{}, fmt.Errorf("render %s: %w", text.Name(), err)
	}
	return rendered{Subject: subject, HTML: htmlBuf.String(), Text: textBuf.String()}, nil
}
