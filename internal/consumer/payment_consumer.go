package consumer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
)

type PaymentApplier interface {
	ApplyPayment(ctx context.Context, req service.PaymentRequest) (*service.PaymentApplied, error)
}

// PaymentVerified is published by the gateway webhook relay after it has
// verified the gateway's signature.
type PaymentVerified struct {
	ReservationID uint   `json:"reservation_id"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
	Method        string `json:"method"`
}

type PaymentConsumer struct {
	svc     PaymentApplier
	timeout time.Duration
}

func NewPaymentConsumer(svc PaymentApplier) *PaymentConsumer {
	return &PaymentConsumer{svc: svc, timeout: 10 * time.Second}
}

// Start applies verified payments until msgs is closed.
func (pc *PaymentConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			pc.handleMessage(msg)
		}
		log.Println("[PaymentConsumer] channel closed, stopping consumer")
	}()
}

func (pc *PaymentConsumer) handleMessage(msg amqp.Delivery) {
	var p PaymentVerified
	if err := json.Unmarshal(msg.Body, &p); err != nil || p.ReservationID == 0 {
		log.Printf("[PaymentConsumer] dropping malformed message: %v", err)
		msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pc.timeout)
	defer cancel()

	applied, err := pc.svc.ApplyPayment(ctx, service.PaymentRequest{
		ReservationID: p.ReservationID,
		Amount:        p.Amount,
		Reference:     p.Reference,
		Method:        p.Method,
	})
	if err != nil {
		switch kind := service.KindOf(err); {
		case kind == service.KindConcurrencyConflict,
			kind == "" && !msg.Redelivered:
			log.Printf("[PaymentConsumer] payment %s for reservation %d failed, requeueing: %v", p.Reference, p.ReservationID, err)
			msg.Nack(false, true)
		case kind == "":
			// unclassified failure on a second delivery goes to the dead letter queue
			log.Printf("[PaymentConsumer] payment %s for reservation %d failed again, dropping: %v", p.Reference, p.ReservationID, err)
			msg.Nack(false, false)
		default:
			log.Printf("[PaymentConsumer] payment %s for reservation %d rejected: %v", p.Reference, p.ReservationID, err)
			msg.Nack(false, false)
		}
		return
	}

	if applied.Replayed {
		log.Printf("[PaymentConsumer] payment %s already applied to reservation %d", p.Reference, p.ReservationID)
	} else {
		log.Printf("[PaymentConsumer] applied payment %s to reservation %d: %s", p.Reference, p.ReservationID, applied.Outcome)
	}
	msg.Ack(false)
}
