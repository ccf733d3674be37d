package script

import (
	"fmt"

	"github.com/campaignkit/callagent/internal/domain"
)

// Goal returns the instruction given to the text generator for the line
// that moves the conversation into state. The generator phrases the line;
// the goal pins down what it must accomplish.
func Goal(state domain.State) string {
	switch state {
	case domain.StateGreeting:
		return "Greet the customer by name, say you are following up on their recent product enquiry, and ask if now is a good moment to talk."
	case domain.StateInterestCheck:
		return "Ask whether the customer is still interested in the product they enquired about."
	case domain.StateAppointment:
		return "Offer to schedule a short call with an advisor and ask whether they would like that."
	case domain.StateAlternatives:
		return "Acknowledge their answer and ask whether they would like to hear about alternative products instead."
	case domain.StateEmailCollection:
		return "Ask for their email address so the details can be sent over."
	case domain.StateClosing:
		return "Thank the customer for their time, confirm any next step that was agreed, and say goodbye."
	default:
		return "Politely wrap up the call and say goodbye."
	}
}

// RepromptGoal is the instruction for the one bounded clarifying question a
// state is allowed before falling through to its negative edge.
func RepromptGoal(state domain.State) string {
	return fmt.Sprintf("The customer's answer was unclear. Politely rephrase the previous question one more time. Previous question goal: %s", Goal(state))
}

// Canned returns the fixed fallback line spoken when the text generator is
// unavailable. The call must always end with a coherent line, so every
// state has one.
func Canned(state domain.State, customer domain.Customer) string {
	switch state {
	case domain.StateGreeting:
		return fmt.Sprintf("Hello %s, I'm calling to follow up on your recent enquiry about %s. Is now a good time to talk?", customer.Name, customer.Product)
	case domain.StateInterestCheck:
		return fmt.Sprintf("Are you still interested in %s?", customer.Product)
	case domain.StateAppointment:
		return "Would you like me to schedule a quick call with one of our advisors?"
	case domain.StateAlternatives:
		return "No problem. Would you like to hear about some alternative options instead?"
	case domain.StateEmailCollection:
		return "Could you share your email address so I can send the details over?"
	case domain.StateClosing, domain.StateCompleted:
		return "Thank you for your time today. Have a great day, goodbye!"
	default:
		return "Thank you for your time. Goodbye!"
	}
}

// CannedReprompt is the fallback clarifying line for a state.
func CannedReprompt(state domain.State, customer domain.Customer) string {
	return "Sorry, I didn't quite catch that. " + Canned(state, customer)
}

// Farewell is the graceful line for a callId we no longer track. The
// gateway speaks it instead of surfacing an error to the caller.
func Farewell() string {
	return "Thank you for your time. Goodbye!"
}
