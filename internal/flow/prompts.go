package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/catalog"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// Fixed user-facing messages.
const (
	WelcomeMessage   = "Welcome to the patient intake system. Let's get started!"
	ClosingMessage   = "Great! Your appointment is confirmed. See you then!"
	RestartMessage   = "Okay, let's start over. What is your full name?"
	ConfirmReprompt  = `Please respond with "yes" to confirm or "no" to start over.`
	AppointmentHelp  = "Sorry, I didn't understand that. Please select a slot by providing the slot id (e.g. 's2') or its number (e.g. '1.2'), or type 'menu' to see the options again."
	RetryMessage     = "Sorry, I couldn't process that just now. Please try again."
	CompletedMessage = "Your intake is already complete."
	GoodbyeMessage   = "Goodbye!"
)

var openingPrompts = map[models.Step]string{
	models.StepFullName:       "What is your full name?",
	models.StepDOB:            "What is your date of birth? (e.g. MM/DD/YYYY)",
	models.StepPayerName:      "What is the name of your insurance provider?",
	models.StepAddress:        "What is your home address? Please include street, city, state, and zip code.",
	models.StepInsuranceID:    "What is your insurance ID number? If you don't have it, you can say 'I don't know' or 'I will provide it later'.",
	models.StepChiefComplaint: "What is the main reason for your visit today? Please briefly describe your symptoms or concerns.",
}

// IsQuit reports whether msg asks to end the session.
func IsQuit(msg string) bool {
	switch strings.ToLower(strings.TrimSpace(msg)) {
	case "quit", "exit":
		return true
	}
	return false
}

// Greeting is the first message of a new session.
func Greeting() string {
	return WelcomeMessage + "\n" + openingPrompts[models.StepFullName]
}

// prompt returns the opening message for the session's current step.
func (e *Engine) prompt(sess *Session) string {
	switch sess.step {
	case models.StepAppointment:
		return appointmentMenu(e.catalog)
	case models.StepConfirm:
		return confirmationSummary(e.catalog, sess.state)
	case models.StepDone:
		return ClosingMessage
	}
	if p, ok := openingPrompts[sess.step]; ok {
		return p
	}
	return "Okay."
}

func appointmentMenu(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Here are the available appointment slots with our providers:\n")
	for i, p := range c.Providers() {
		fmt.Fprintf(&b, "%d. %s (%s):\n", i+1, p.Name, p.Specialty)
		for j, s := range c.SlotsForProvider(p.ID) {
			fmt.Fprintf(&b, "  %d.%d  %s (slot id: %s)\n", i+1, j+1, s.StartISO(), s.ID)
		}
	}
	b.WriteString("\nPlease select a slot by providing the slot id (e.g. 's2') or its number (e.g. '1.2').")
	return b.String()
}

func confirmationSummary(c *catalog.Catalog, st models.IntakeState) string {
	provider, specialty, start := "N/A", "N/A", "N/A"
	if p, ok := c.Provider(models.Value(st.Appointment.ProviderID)); ok {
		provider, specialty = p.Name, p.Specialty
	}
	if s, ok := c.Slot(models.Value(st.Appointment.SlotID)); ok {
		start = s.StartISO()
	}
	var b strings.Builder
	b.WriteString("Here is the information I have collected:\n\n")
	fmt.Fprintf(&b, "Appointment with: %s (%s)\n", provider, specialty)
	fmt.Fprintf(&b, "Appointment time: %s\n", start)
	fmt.Fprintf(&b, "Patient name: %s\n", orNA(st.Patient.FullName))
	fmt.Fprintf(&b, "Date of birth: %s\n", orNA(st.Patient.DOB))
	fmt.Fprintf(&b, "Insurance provider: %s\n", orNA(st.Insurance.PayerName))
	fmt.Fprintf(&b, "Address: %s\n", st.Demographics.Address.Line())
	b.WriteString("\nPlease confirm if all this information is correct. (yes/no)")
	return b.String()
}

func orNA(p *string) string {
	if !models.IsSet(p) {
		return "N/A"
	}
	return *p
}
