package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML is the declarative call-control document returned from a webhook.
type TwiML struct {
	XMLName xml.Name `xml:"Response"`
	Say     []Say    `xml:"Say,omitempty"`
	Gather  *Gather  `xml:"Gather,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

// Say speaks a line to the caller.
type Say struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

// Gather collects the caller's spoken answer and posts it to Action.
type Gather struct {
	Input         string `xml:"input,attr"`
	Action        string `xml:"action,attr"`
	Method        string `xml:"method,attr"`
	SpeechTimeout string `xml:"speechTimeout,attr,omitempty"`
	Language      string `xml:"language,attr,omitempty"`
	Say           *Say   `xml:"Say,omitempty"`
}

// Hangup ends the call.
type Hangup struct{}

// SpeakAndGather speaks text and then listens for the next utterance,
// posting the speech result to actionURL.
func SpeakAndGather(text, voice, actionURL string) *TwiML {
	return &TwiML{
		Say: []Say{{Voice: voice, Text: text}},
		Gather: &Gather{
			Input:         "speech",
			Action:        actionURL,
			Method:        "POST",
			SpeechTimeout: "auto",
		},
	}
}

// SpeakAndHangup speaks a final line and ends the call.
func SpeakAndHangup(text, voice string) *TwiML {
	return &TwiML{
		Say:    []Say{{Voice: voice, Text: text}},
		Hangup: &Hangup{},
	}
}

// Render serializes the document with the XML declaration Twilio expects.
func (t *TwiML) Render() ([]byte, error) {
	body, err := xml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
