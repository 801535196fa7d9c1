// Package usecase wires transports to the dispatcher.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OSINTfan/sso-1/internal/dispatcher"
	"github.com/OSINTfan/sso-1/internal/domain/models"
	pkgkafka "github.com/OSINTfan/sso-1/pkg/kafka"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// Relayer consumes signed update submissions from Kafka and feeds them to
// the dispatcher. A protocol rejection is terminal for that message: it is
// logged and the offset commits, because resubmitting an invalid or replayed
// payload can never succeed. Only undecodable frames propagate an error so
// the consumer's retry/DLQ path picks them up.
type Relayer struct {
	topic string
	disp  *dispatcher.Dispatcher
	l     *applogger.Logger
}

func NewRelayer(topic string, disp *dispatcher.Dispatcher) *Relayer {
	return &Relayer{topic: topic, disp: disp}
}

// SetLogger injects a structured logger.
func (r *Relayer) SetLogger(l *applogger.Logger) { r.l = l }

func (r *Relayer) Topic() string { return r.topic }

func (r *Relayer) Handle(ctx context.Context, b []byte) error {
	var req models.UpdateSignalRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("decode update submission: %w", err)
	}
	params, err := dispatcher.UpdateParamsFromRequest(&req)
	if err != nil {
		return fmt.Errorf("parse update submission: %w", err)
	}

	if _, err := r.disp.Dispatch(ctx, dispatcher.Instruction{
		Kind:   dispatcher.KindUpdateSignal,
		Params: params,
	}); err != nil {
		if r.l != nil {
			r.l.Warn("relayed update rejected",
				applogger.String("asset_pair", req.AssetPair),
				applogger.String("code", dispatcher.ErrorCode(err)),
			)
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*Relayer)(nil)
