package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type message struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	From         *recipient  `json:"from,omitempty"`
	ToRecipients []recipient `json:"toRecipients"`
}

type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// SendMail submits an HTML message from the given mailbox through Graph's
// sendMail action. Throttled submissions are not retried.
func (c *Client) SendMail(ctx context.Context, fromAddress, fromName string, to []string, subject, htmlBody string) error {
	fromAddress = strings.TrimSpace(fromAddress)
	if fromAddress == "" {
		return errors.New("sender address is required")
	}

	recipients := make([]recipient, 0, len(to))
	for _, addr := range to {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		recipients = append(recipients, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	if len(recipients) == 0 {
		return errors.New("at least one recipient is required")
	}

	payload, err := json.Marshal(sendMailRequest{
		Message: message{
			Subject: subject,
			Body:    itemBody{ContentType: "HTML", Content: htmlBody},
			From: &recipient{EmailAddress: emailAddress{
				Address: fromAddress,
				Name:    strings.TrimSpace(fromName),
			}},
			ToRecipients: recipients,
		},
		SaveToSentItems: false,
	})
	if err != nil {
		return err
	}

	endpoint, err := c.graphURL("/users/"+url.PathEscape(fromAddress)+"/sendMail", nil)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, request{
		op:     "send mail as " + fromAddress,
		method: http.MethodPost,
		url:    endpoint,
		body:   payload,
		policy: sendPolicy,
	})
	return err
}
