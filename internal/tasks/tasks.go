package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/muzammelhussain/krishi-link-server/internal/config"
	"github.com/muzammelhussain/krishi-link-server/internal/email"
)

// Task types handled by the background worker.
const (
	TypeInterestReceived = "interest:received"
	TypeInterestDecided  = "interest:decided"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// InterestReceivedPayload notifies a crop owner that somebody wants their crop.
type InterestReceivedPayload struct {
	CropName   string  `json:"crop_name"`
	OwnerName  string  `json:"owner_name"`
	OwnerEmail string  `json:"owner_email"`
	BuyerName  string  `json:"buyer_name"`
	BuyerEmail string  `json:"buyer_email"`
	Quantity   float64 `json:"quantity"`
	Message    string  `json:"message"`
}

// InterestDecidedPayload notifies a buyer that their interest was accepted or rejected.
type InterestDecidedPayload struct {
	CropName   string  `json:"crop_name"`
	BuyerName  string  `json:"buyer_name"`
	BuyerEmail string  `json:"buyer_email"`
	Status     string  `json:"status"`
	Quantity   float64 `json:"quantity"`
}

// NewInterestReceivedTask builds the owner-notification task.
func NewInterestReceivedTask(p InterestReceivedPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interest received payload: %w", err)
	}
	return asynq.NewTask(TypeInterestReceived, payload), nil
}

// NewInterestDecidedTask builds the buyer-notification task.
func NewInterestDecidedTask(p InterestDecidedPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interest decided payload: %w", err)
	}
	return asynq.NewTask(TypeInterestDecided, payload), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, emailSender: emailSender}
}

// notificationTemplates are the built-in subject/body pairs. Placeholders use
// {{.key}} syntax and are filled from the task payload.
var notificationTemplates = map[string]struct {
	Subject string
	Body    string
}{
	TypeInterestReceived: {
		Subject: "{{.buyer_name}} is interested in your {{.crop_name}}",
		Body:    "Hello {{.owner_name}},\n\n{{.buyer_name}} ({{.buyer_email}}) wants {{.quantity}} of your crop \"{{.crop_name}}\".\n\nMessage: {{.message}}\n\nLog in to accept or reject this interest.",
	},
	TypeInterestDecided: {
		Subject: "Your interest in {{.crop_name}} was {{.status}}",
		Body:    "Hello {{.buyer_name}},\n\nThe owner of \"{{.crop_name}}\" has {{.status}} your interest for {{.quantity}}.\n",
	},
}

// RenderNotification fills a built-in template with payload data and returns
// the subject and full raw message, headers included.
func (p *TaskProcessor) RenderNotification(taskType, to string, data map[string]interface{}) (subject string, rawMessage []byte, err error) {
	tmpl, ok := notificationTemplates[taskType]
	if !ok {
		return "", nil, fmt.Errorf("no notification template for task type %s", taskType)
	}

	subject = tmpl.Subject
	body := tmpl.Body
	for key, val := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subject = strings.ReplaceAll(subject, placeholder, valueStr)
		body = strings.ReplaceAll(body, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@krishilink.example.com"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	return subject, []byte(sb.String()), nil
}

// payloadToData converts a payload struct to the flat map RenderNotification expects.
func payloadToData(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// HandleInterestReceivedTask emails a crop owner about a new interest.
func (p *TaskProcessor) HandleInterestReceivedTask(ctx context.Context, t *asynq.Task) error {
	var payload InterestReceivedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal interest received payload: %v: %w", err, asynq.SkipRetry)
	}

	data, err := payloadToData(payload)
	if err != nil {
		return fmt.Errorf("failed to flatten payload: %v: %w", err, asynq.SkipRetry)
	}

	subject, rawMessage, err := p.RenderNotification(TypeInterestReceived, payload.OwnerEmail, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := p.emailSender.Send(ctx, []string{payload.OwnerEmail}, subject, rawMessage); err != nil {
		log.Printf("Owner notification to %s failed: %v", payload.OwnerEmail, err)
		return err
	}
	return nil
}

// HandleInterestDecidedTask emails a buyer about the decision on their interest.
func (p *TaskProcessor) HandleInterestDecidedTask(ctx context.Context, t *asynq.Task) error {
	var payload InterestDecidedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal interest decided payload: %v: %w", err, asynq.SkipRetry)
	}

	data, err := payloadToData(payload)
	if err != nil {
		return fmt.Errorf("failed to flatten payload: %v: %w", err, asynq.SkipRetry)
	}

	subject, rawMessage, err := p.RenderNotification(TypeInterestDecided, payload.BuyerEmail, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := p.emailSender.Send(ctx, []string{payload.BuyerEmail}, subject, rawMessage); err != nil {
		log.Printf("Buyer notification to %s failed: %v", payload.BuyerEmail, err)
		return err
	}
	return nil
}

// SetupServer configures the Asynq server and its handler mux. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInterestReceived, processor.HandleInterestReceivedTask)
	mux.HandleFunc(TypeInterestDecided, processor.HandleInterestDecidedTask)

	return srv, mux
}
