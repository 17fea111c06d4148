package tasks_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/muzammelhussain/krishi-link-server/internal/config"
	"github.com/muzammelhussain/krishi-link-server/internal/tasks"
)

// --- Mocks ---

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

// --- Tests ---

func TestHandleInterestReceivedTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{SmtpFromAddress: "noreply@krishilink.test"}
	p := tasks.NewTaskProcessor(cfg, mockEmailSender)

	task, err := tasks.NewInterestReceivedTask(tasks.InterestReceivedPayload{
		CropName:   "Basmati Rice",
		OwnerName:  "Farmer",
		OwnerEmail: "owner@example.com",
		BuyerName:  "Buyer",
		BuyerEmail: "buyer@example.com",
		Quantity:   20,
		Message:    "Need 20kg",
	})
	assert.NoError(t, err)
	assert.Equal(t, tasks.TypeInterestReceived, task.Type())

	expectedSubject := "Buyer is interested in your Basmati Rice"
	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"owner@example.com"},
		expectedSubject,
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: owner@example.com")
			assert.Contains(t, msgStr, "From: noreply@krishilink.test")
			assert.Contains(t, msgStr, fmt.Sprintf("Subject: %s", expectedSubject))
			assert.Contains(t, msgStr, "Buyer (buyer@example.com) wants 20 of your crop \"Basmati Rice\"")
			assert.Contains(t, msgStr, "Message: Need 20kg")
			return true
		}),
	).Return(nil)

	err = p.HandleInterestReceivedTask(context.Background(), task)
	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleInterestDecidedTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{}
	p := tasks.NewTaskProcessor(cfg, mockEmailSender)

	task, err := tasks.NewInterestDecidedTask(tasks.InterestDecidedPayload{
		CropName:   "Tomato",
		BuyerName:  "Buyer",
		BuyerEmail: "buyer@example.com",
		Status:     "accepted",
		Quantity:   5,
	})
	assert.NoError(t, err)

	expectedSubject := "Your interest in Tomato was accepted"
	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"buyer@example.com"},
		expectedSubject,
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: buyer@example.com")
			assert.Contains(t, msgStr, "has accepted your interest for 5")
			return true
		}),
	).Return(nil)

	err = p.HandleInterestDecidedTask(context.Background(), task)
	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleInterestReceivedTask_BadPayload(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{}
	p := tasks.NewTaskProcessor(cfg, mockEmailSender)

	task := asynq.NewTask(tasks.TypeInterestReceived, []byte("not json"))

	err := p.HandleInterestReceivedTask(context.Background(), task)
	assert.Error(t, err)
	// Malformed payloads are permanent failures; retrying cannot fix them.
	assert.ErrorIs(t, err, asynq.SkipRetry)
	mockEmailSender.AssertNotCalled(t, "Send")
}

func TestRenderNotification_UnknownType(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender))

	_, _, err := p.RenderNotification("interest:unknown", "to@example.com", map[string]interface{}{})
	assert.Error(t, err)
}

func TestRenderNotification_FillsPlaceholders(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender))

	payload := tasks.InterestDecidedPayload{
		CropName:   "Onion",
		BuyerName:  "Buyer",
		BuyerEmail: "buyer@example.com",
		Status:     "rejected",
		Quantity:   3,
	}
	raw, _ := json.Marshal(payload)
	data := map[string]interface{}{}
	assert.NoError(t, json.Unmarshal(raw, &data))

	subject, rawMessage, err := p.RenderNotification(tasks.TypeInterestDecided, "buyer@example.com", data)
	assert.NoError(t, err)
	assert.Equal(t, "Your interest in Onion was rejected", subject)
	assert.NotContains(t, string(rawMessage), "{{.")
	// Falls back to a default From when no SMTP address is configured.
	assert.Contains(t, string(rawMessage), "From: noreply@krishilink.example.com")
}
