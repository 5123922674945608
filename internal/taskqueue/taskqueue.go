// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package taskqueue schedules deferred HTTP invocations on Cloud Tasks.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/google/build-reconciler/pkg/act"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Queue schedules a message to be POSTed to url once delay has elapsed.
type Queue interface {
	Add(ctx context.Context, url string, msg act.Input, delay time.Duration) (*taskspb.Task, error)
}

type queue struct {
	client              *cloudtasks.Client
	queuePath           string
	serviceAccountEmail string
	now                 func() time.Time
}

// NewQueue returns a Queue adding tasks to the queue at queuePath, authenticated as the service account.
func NewQueue(ctx context.Context, queuePath, serviceAccountEmail string) (Queue, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating TaskQueue client")
	}
	return &queue{
		client:              client,
		queuePath:           queuePath,
		serviceAccountEmail: serviceAccountEmail,
		now:                 time.Now,
	}, nil
}

func (q *queue) Add(ctx context.Context, url string, msg act.Input, delay time.Duration) (*taskspb.Task, error) {
	req, err := newTaskRequest(q.queuePath, q.serviceAccountEmail, url, msg, q.now().Add(delay))
	if err != nil {
		return nil, err
	}
	task, err := q.client.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks.CreateTask: %w", err)
	}
	return task, nil
}

func newTaskRequest(parent, serviceAccountEmail, url string, msg act.Input, at time.Time) (*taskspb.CreateTaskRequest, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling message")
	}
	return &taskspb.CreateTaskRequest{
		Parent: parent,
		Task: &taskspb.Task{
			ScheduleTime: timestamppb.New(at),
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        url,
					Headers: map[string]string{
						"Content-Type": "application/json",
					},
					Body: body,
					AuthorizationHeader: &taskspb.HttpRequest_OidcToken{
						OidcToken: &taskspb.OidcToken{
							ServiceAccountEmail: serviceAccountEmail,
						},
					},
				},
			},
		},
	}, nil
}
