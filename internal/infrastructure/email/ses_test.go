package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"go.uber.org/zap"
)

type fakeSES struct {
	inputs  []*ses.SendEmailInput
	sendErr error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.inputs = append(f.inputs, params)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailerSend(t *testing.T) {
	client := &fakeSES{}
	m := NewSESMailerWithClient(client, "no-reply@example.com", zap.NewNop())

	err := m.Send(context.Background(), "maria@example.com", "Rendición pagada", "cuerpo")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.Source) != "no-reply@example.com" {
		t.Errorf("Source = %s", aws.ToString(in.Source))
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "maria@example.com" {
		t.Errorf("ToAddresses = %v", in.Destination.ToAddresses)
	}
	if aws.ToString(in.Message.Subject.Data) != "Rendición pagada" {
		t.Errorf("Subject = %s", aws.ToString(in.Message.Subject.Data))
	}
	if aws.ToString(in.Message.Body.Text.Data) != "cuerpo" {
		t.Errorf("Body = %s", aws.ToString(in.Message.Body.Text.Data))
	}
}

func TestSESMailerSendError(t *testing.T) {
	client := &fakeSES{sendErr: errors.New("throttled")}
	m := NewSESMailerWithClient(client, "no-reply@example.com", zap.NewNop())

	err := m.Send(context.Background(), "maria@example.com", "x", "y")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	m := NewLogMailer(zap.NewNop())
	if err := m.Send(context.Background(), "x@example.com", "s", "b"); err != nil {
		t.Errorf("Send: %v", err)
	}
}
