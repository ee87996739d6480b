package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Envelope 投递到交换机的消息体
type Envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

type SessionCreated struct {
	SessionID        string   `json:"sessionId"`
	LearnerID        string   `json:"learnerId,omitempty"`
	Topics           []string `json:"topics"`
	DifficultyLevels []string `json:"difficultyLevels"`
	TotalQuestions   int      `json:"totalQuestions"`
}

type AnswerSubmitted struct {
	SessionID         string `json:"sessionId"`
	QuestionID        string `json:"questionId"`
	IsCorrect         bool   `json:"isCorrect"`
	TimeTaken         int    `json:"timeTaken"`
	QuestionsAnswered int    `json:"questionsAnswered"`
	TotalQuestions    int    `json:"totalQuestions"`
}

type SessionCompleted struct {
	SessionID      string    `json:"sessionId"`
	LearnerID      string    `json:"learnerId,omitempty"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	TotalScore     float64   `json:"totalScore"`
	TimeTaken      int       `json:"timeTaken"`
	CompletedAt    time.Time `json:"completedAt"`
}

// AMQPPublisher 以事件类型作为 routing key 发布到 topic 交换机
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NopPublisher 未开启事件时使用
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return nil
}
