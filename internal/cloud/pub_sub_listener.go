// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file defines a generic, reusable Pub/Sub message listener. It abstracts
// the mechanics of receiving messages from a subscription and delegates the
// actual processing to an attached Command. Audits triggered by bucket upload
// notifications flow through this listener.
//
// Logic Flow:
//  1. An instance of PubSubListener is created with a client and a subscription ID.
//  2. A "Command" (a piece of business logic) is attached to this listener.
//  3. The `Listen` method starts an asynchronous background goroutine.
//  4. Each message that arrives is handed to the attached Command for processing.
//  5. The message is acknowledged only if the Command completes without errors,
//     ensuring reliable, at-least-once processing.
//
// Structs:
//   - PubSubListener: Manages the connection to a Pub/Sub subscription and holds
//     the command that will process incoming messages.
//
// Functions:
//   - NewPubSubListener: Constructor for creating a new PubSubListener.
//   - SetCommand: Attaches a processing command to the listener.
//   - Listen: Starts the background process to receive and handle messages.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener encapsulates the components needed to listen to a specific
// Pub/Sub subscription. It connects a subscription to a processing command.
// Listeners have a life-cycle independent of individual API requests, so they
// are a core cloud component.
type PubSubListener struct {
	client       *pubsub.Client       // The client for interacting with the Pub/Sub service.
	subscription *pubsub.Subscription // The specific subscription this listener will pull messages from.
	command      cor.Command          // The command to execute for each message received.
}

// NewPubSubListener is the constructor for creating a PubSubListener. The
// command may be nil at construction time and attached later once the full
// processing chain is assembled.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches a command to the listener. It ensures an already
// attached command is not accidentally overwritten.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts the asynchronous message receiving process in a background
// goroutine so the server can continue handling API requests. Cancelling the
// supplied context stops the listener.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening for upload notifications", "subscription", m.subscription.String())

	go func() {
		tracer := otel.Tracer("message-listener")

		// Receive blocks and waits for messages, invoking the callback for
		// each one that arrives.
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			span.SetAttributes(attribute.String("msg", string(msg.Data)))

			// Build a fresh chain context carrying the message payload as the
			// initial input, then run the attached command.
			chainCtx := cor.NewBaseContext()
			chainCtx.SetContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))
			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				// Ack tells Pub/Sub the message was processed and can be dropped.
				msg.Ack()
			} else {
				span.SetStatus(codes.Error, "failed")
				for _, e := range chainCtx.GetErrors() {
					slog.ErrorContext(spanCtx, "error executing chain", "error", e)
				}
				// No Ack and no Nack: the message is redelivered after its
				// acknowledgement deadline per the subscription's retry policy.
			}

			span.End()
		})

		if err != nil {
			slog.Error("error receiving data", "error", err)
		}
	}()
}
