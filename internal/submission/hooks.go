package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"application-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const EventApplicationSubmitted = "application.submitted"

// ==========================
// Process instance
// ==========================

// ProcessStarter is implemented by camunda.Client.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// ZeebeHook starts one BPMN process instance per submission.
type ZeebeHook struct {
	starter   ProcessStarter
	processID string
}

func NewZeebeHook(starter ProcessStarter, processID string) *ZeebeHook {
	return &ZeebeHook{starter: starter, processID: processID}
}

func (h *ZeebeHook) Name() string { return "zeebe" }

func (h *ZeebeHook) Fire(ctx context.Context, s *Submission) error {
	_, err := h.starter.StartProcess(ctx, h.processID, s.Summary())
	return err
}

// ==========================
// Receipt email
// ==========================

// EmailSender is implemented by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

// EmailHook mails a receipt to the applicant. Submissions without a
// contact address are skipped.
type EmailHook struct {
	sender  EmailSender
	subject string
}

func NewEmailHook(sender EmailSender, subject string) *EmailHook {
	if subject == "" {
		subject = "We received your application"
	}
	return &EmailHook{sender: sender, subject: subject}
}

func (h *EmailHook) Name() string { return "email" }

func (h *EmailHook) Fire(ctx context.Context, s *Submission) error {
	to := s.ApplicantEmail()
	if to == "" {
		return nil
	}
	_, err := h.sender.SendText(ctx, to, h.subject, receiptBody(s))
	return err
}

func receiptBody(s *Submission) string {
	var b strings.Builder
	name := s.ApplicantName()
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for applying as a %s.", s.Application.Role)
	if v := s.Application.Venture.Name; v != "" && s.Application.Role == models.RoleFounder {
		fmt.Fprintf(&b, " Your application for %s", v)
	} else {
		b.WriteString(" Your application")
	}
	fmt.Fprintf(&b, " was received on %s.\n", s.SubmittedAt.UTC().Format("2 January 2006"))
	b.WriteString("We will be in touch once it has been reviewed.\n")
	return b.String()
}

// ==========================
// Topic event
// ==========================

// EventPublisher is implemented by aws.SNSClient.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}) (string, error)
}

// TopicHook publishes an application.submitted event.
type TopicHook struct {
	publisher EventPublisher
}

func NewTopicHook(publisher EventPublisher) *TopicHook {
	return &TopicHook{publisher: publisher}
}

func (h *TopicHook) Name() string { return "topic" }

func (h *TopicHook) Fire(ctx context.Context, s *Submission) error {
	_, err := h.publisher.PublishEvent(ctx, EventApplicationSubmitted, s.Summary())
	return err
}

// ==========================
// Search index
// ==========================

// IndexHook stores the submitted application as a search document keyed
// by user id.
type IndexHook struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexHook(client *elasticsearch.Client, index string) *IndexHook {
	return &IndexHook{client: client, index: index}
}

func (h *IndexHook) Name() string { return "index" }

func (h *IndexHook) Fire(ctx context.Context, s *Submission) error {
	doc := s.Summary()
	doc["application"] = s.Application
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      h.index,
		DocumentID: s.UserID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, h.client)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index %s: %s", h.index, res.Status())
	}
	return nil
}
