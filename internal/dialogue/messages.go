package dialogue

// Fixed assistant messages. These are the plain texts handed to the stylist.
const (
	MsgWelcome          = "Welcome to the Vehicle Safety Reporting System. Please describe the incident or issue you experienced."
	MsgWelcomeBack      = "Welcome back. Please describe the new incident."
	MsgGreeting         = "Hello! Please describe the vehicle incident or safety concern in your own words."
	MsgComplete         = "Thank you. Your report is complete and is being submitted."
	MsgSubmitted        = "Your report has been submitted successfully. Thank you for the detailed information."
	MsgDeliveryFailed   = "Your report could not be saved, please retry."
	MsgAlreadySubmitted = "This report has already been submitted. Start a new report to describe another incident."
	msgNoMatchPrefix    = "I didn't catch that. Reply 'skip' if you don't know. "
	msgRecordedPrefix   = "Recorded: "
)

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hola": true, "sup": true,
	"start": true, "yo": true, "good morning": true, "good afternoon": true,
}
