package mail

import (
	"fmt"
	"strings"
)

// templateSet holds localized strings for all transactional messages.
type templateSet struct {
	verifySubject  string
	verifyBody     string // name, code
	welcomeSubject string
	welcomeBody    string // name, credits
	resetSubject   string
	resetBody      string // name, url
}

var templates = map[string]templateSet{
	"en": {
		verifySubject:  "Verify your email address",
		verifyBody:     "<p>Hi %s,</p><p>Your verification code is <b>%s</b>. It expires in 15 minutes.</p>",
		welcomeSubject: "Welcome aboard",
		welcomeBody:    "<p>Hi %s,</p><p>Your email is verified and %d bonus credits were added to your account.</p>",
		resetSubject:   "Reset your password",
		resetBody:      "<p>Hi %s,</p><p>Click <a href=\"%s\">here</a> to reset your password. The link expires in one hour.</p>",
	},
	"fr": {
		verifySubject:  "Vérifiez votre adresse e-mail",
		verifyBody:     "<p>Bonjour %s,</p><p>Votre code de vérification est <b>%s</b>. Il expire dans 15 minutes.</p>",
		welcomeSubject: "Bienvenue",
		welcomeBody:    "<p>Bonjour %s,</p><p>Votre e-mail est vérifié et %d crédits bonus ont été ajoutés à votre compte.</p>",
		resetSubject:   "Réinitialisez votre mot de passe",
		resetBody:      "<p>Bonjour %s,</p><p>Cliquez <a href=\"%s\">ici</a> pour réinitialiser votre mot de passe. Le lien expire dans une heure.</p>",
	},
	"es": {
		verifySubject:  "Verifica tu dirección de correo",
		verifyBody:     "<p>Hola %s,</p><p>Tu código de verificación es <b>%s</b>. Caduca en 15 minutos.</p>",
		welcomeSubject: "Bienvenido",
		welcomeBody:    "<p>Hola %s,</p><p>Tu correo está verificado y se añadieron %d créditos de regalo a tu cuenta.</p>",
		resetSubject:   "Restablece tu contraseña",
		resetBody:      "<p>Hola %s,</p><p>Haz clic <a href=\"%s\">aquí</a> para restablecer tu contraseña. El enlace caduca en una hora.</p>",
	},
	"it": {
		verifySubject:  "Verifica il tuo indirizzo email",
		verifyBody:     "<p>Ciao %s,</p><p>Il tuo codice di verifica è <b>%s</b>. Scade tra 15 minuti.</p>",
		welcomeSubject: "Benvenuto",
		welcomeBody:    "<p>Ciao %s,</p><p>La tua email è verificata e %d crediti bonus sono stati aggiunti al tuo account.</p>",
		resetSubject:   "Reimposta la tua password",
		resetBody:      "<p>Ciao %s,</p><p>Clicca <a href=\"%s\">qui</a> per reimpostare la tua password. Il link scade tra un'ora.</p>",
	},
	"de": {
		verifySubject:  "Bestätige deine E-Mail-Adresse",
		verifyBody:     "<p>Hallo %s,</p><p>Dein Bestätigungscode lautet <b>%s</b>. Er läuft in 15 Minuten ab.</p>",
		welcomeSubject: "Willkommen",
		welcomeBody:    "<p>Hallo %s,</p><p>Deine E-Mail ist bestätigt und %d Bonus-Credits wurden deinem Konto gutgeschrieben.</p>",
		resetSubject:   "Setze dein Passwort zurück",
		resetBody:      "<p>Hallo %s,</p><p>Klicke <a href=\"%s\">hier</a>, um dein Passwort zurückzusetzen. Der Link läuft in einer Stunde ab.</p>",
	},
}

// templatesFor resolves a language tag like "fr" or "fr-FR", falling back to
// English.
func templatesFor(lang string) templateSet {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	if set, ok := templates[lang]; ok {
		return set
	}
	return templates["en"]
}

// VerificationEmail renders the email-verification message.
func VerificationEmail(lang, name, code string) (subject, body string) {
	set := templatesFor(lang)
	return set.verifySubject, fmt.Sprintf(set.verifyBody, name, code)
}

// WelcomeEmail renders the post-verification welcome message.
func WelcomeEmail(lang, name string, credits int64) (subject, body string) {
	set := templatesFor(lang)
	return set.welcomeSubject, fmt.Sprintf(set.welcomeBody, name, credits)
}

// PasswordResetEmail renders the password-reset message.
func PasswordResetEmail(lang, name, resetURL string) (subject, body string) {
	set := templatesFor(lang)
	return set.resetSubject, fmt.Sprintf(set.resetBody, name, resetURL)
}
