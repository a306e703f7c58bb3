package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/pkg/logging"
)

const (
	// duplicateWindow bounds how far back Create scans for a matching
	// submission before suppressing a retry as a duplicate.
	duplicateWindow = 5 * time.Minute

	// maxUpdateAttempts bounds the write-verify-retry loop.
	maxUpdateAttempts = 3

	// verifyBackoff is the fixed pause between verification retries.
	verifyBackoff = 150 * time.Millisecond

	// businessDateIndex is the GSI keyed on businessId + preferredDate used
	// for availability conflict checks.
	businessDateIndex = "businessDate-index"
)

// ErrPersistenceUncertain means an update could not be verified after
// bounded retries. The write may still have landed; callers must re-query
// before assuming failure.
var ErrPersistenceUncertain = errors.New("store: update not verified; re-query before assuming failure")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Patch describes the fields an update may change. Nil pointers leave the
// stored value untouched.
type Patch struct {
	Status        *appointment.Status
	SuggestedTime *appointment.SuggestedTime
	PreferredDate *string
	PreferredTime *string
	Notes         *string
}

func (p Patch) empty() bool {
	return p.Status == nil && p.SuggestedTime == nil && p.PreferredDate == nil && p.PreferredTime == nil && p.Notes == nil
}

// AppointmentStore persists appointment documents to DynamoDB. Appointments
// are children of their chat room: partition key chatRoomId, sort key
// appointmentId, so updates are single-item conditional writes and never
// read-modify-write over the whole aggregate.
type AppointmentStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	metrics   *metrics.EngineMetrics
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewAppointmentStore builds a store backed by the provided DynamoDB client.
func NewAppointmentStore(client dynamoAPI, tableName string, logger *logging.Logger) *AppointmentStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// WithMetrics attaches retry instrumentation.
func (s *AppointmentStore) WithMetrics(engineMetrics *metrics.EngineMetrics) *AppointmentStore {
	s.metrics = engineMetrics
	return s
}

// WithClock overrides the store clock, for tests.
func (s *AppointmentStore) WithClock(now func() time.Time, sleep func(time.Duration)) *AppointmentStore {
	if now != nil {
		s.now = now
	}
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// Create inserts a new appointment. A submission matching an existing
// record's (service, date, time, customerName) in the same chat room within
// the last five minutes returns the existing record instead, so retried
// client submissions never double-book.
func (s *AppointmentStore) Create(ctx context.Context, appt *appointment.Appointment) (*appointment.Appointment, error) {
	if appt == nil {
		return nil, errors.New("store: appointment cannot be nil")
	}
	if appt.ChatRoomID == "" {
		return nil, errors.New("store: chat room id required")
	}

	if existing, err := s.findRecentDuplicate(ctx, appt); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Info("duplicate appointment submission suppressed",
			"chat_room_id", appt.ChatRoomID, "appointment_id", existing.ID)
		return existing, nil
	}

	record := *appt
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = appointment.StatusRequested
	}
	now := s.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("store: marshal appointment: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(appointmentId)"),
	})
	if err != nil {
		return nil, fmt.Errorf("store: put appointment: %w", err)
	}
	return &record, nil
}

// FindByID loads one appointment from its chat room with a consistent read.
func (s *AppointmentStore) FindByID(ctx context.Context, chatRoomID, appointmentID string) (*appointment.Appointment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"chatRoomId":    &types.AttributeValueMemberS{Value: chatRoomID},
			"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get appointment: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, appointment.ErrNotFound
	}

	var record appointment.Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("store: unmarshal appointment: %w", err)
	}
	return &record, nil
}

// Update applies a patch with a single conditional write, then verifies it
// by re-reading the record. Verification failures are retried with a short
// fixed backoff; exhaustion surfaces ErrPersistenceUncertain rather than a
// silent success. This is what makes a suggestedTime durable enough to
// honor the reschedule_requested invariant.
func (s *AppointmentStore) Update(ctx context.Context, chatRoomID, appointmentID string, patch Patch) (*appointment.Appointment, error) {
	if patch.empty() {
		return s.FindByID(ctx, chatRoomID, appointmentID)
	}

	input, err := s.buildUpdate(chatRoomID, appointmentID, patch)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		if _, err := s.client.UpdateItem(ctx, input); err != nil {
			var conditionFailed *types.ConditionalCheckFailedException
			if errors.As(err, &conditionFailed) {
				return nil, appointment.ErrNotFound
			}
			return nil, fmt.Errorf("store: update appointment: %w", err)
		}

		record, err := s.FindByID(ctx, chatRoomID, appointmentID)
		if err != nil {
			return nil, err
		}
		if patchApplied(record, patch) {
			return record, nil
		}

		s.metrics.ObserveStoreRetry()
		s.logger.Warn("appointment update not visible on re-read, retrying",
			"chat_room_id", chatRoomID, "appointment_id", appointmentID, "attempt", attempt)
		if attempt < maxUpdateAttempts {
			s.sleep(verifyBackoff)
		}
	}

	return nil, ErrPersistenceUncertain
}

// ListByChatRoom returns every appointment in a chat room.
func (s *AppointmentStore) ListByChatRoom(ctx context.Context, chatRoomID string) ([]appointment.Appointment, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("chatRoomId = :chatRoom"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chatRoom": &types.AttributeValueMemberS{Value: chatRoomID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: query chat room: %w", err)
	}

	return unmarshalAppointments(out.Items)
}

// ListByBusinessDate returns appointments for a business on a calendar
// date, via the businessDate GSI. This backs availability conflict checks.
func (s *AppointmentStore) ListByBusinessDate(ctx context.Context, businessID, date string) ([]appointment.Appointment, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(businessDateIndex),
		KeyConditionExpression: aws.String("businessId = :business AND preferredDate = :date"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":business": &types.AttributeValueMemberS{Value: businessID},
			":date":     &types.AttributeValueMemberS{Value: date},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: query business date: %w", err)
	}

	return unmarshalAppointments(out.Items)
}

func unmarshalAppointments(items []map[string]types.AttributeValue) ([]appointment.Appointment, error) {
	appointments := make([]appointment.Appointment, 0, len(items))
	for _, item := range items {
		var record appointment.Appointment
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("store: unmarshal appointment: %w", err)
		}
		appointments = append(appointments, record)
	}
	return appointments, nil
}

func (s *AppointmentStore) findRecentDuplicate(ctx context.Context, appt *appointment.Appointment) (*appointment.Appointment, error) {
	existing, err := s.ListByChatRoom(ctx, appt.ChatRoomID)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().Add(-duplicateWindow)
	for i := range existing {
		candidate := &existing[i]
		if candidate.Service != appt.Service ||
			candidate.PreferredDate != appt.PreferredDate ||
			candidate.PreferredTime != appt.PreferredTime ||
			candidate.CustomerName != appt.CustomerName {
			continue
		}
		if candidate.CreatedAt.After(cutoff) || candidate.UpdatedAt.After(cutoff) {
			return candidate, nil
		}
	}
	return nil, nil
}

func (s *AppointmentStore) buildUpdate(chatRoomID, appointmentID string, patch Patch) (*dynamodb.UpdateItemInput, error) {
	names := map[string]string{"#updatedAt": "updatedAt"}
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
	}
	expr := "SET #updatedAt = :updatedAt"

	if patch.Status != nil {
		names["#status"] = "status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(*patch.Status)}
		expr += ", #status = :status"
	}
	if patch.SuggestedTime != nil {
		suggested, err := attributevalue.Marshal(patch.SuggestedTime)
		if err != nil {
			return nil, fmt.Errorf("store: marshal suggested time: %w", err)
		}
		names["#suggestedTime"] = "suggestedTime"
		values[":suggestedTime"] = suggested
		expr += ", #suggestedTime = :suggestedTime"
	}
	if patch.PreferredDate != nil {
		names["#preferredDate"] = "preferredDate"
		values[":preferredDate"] = &types.AttributeValueMemberS{Value: *patch.PreferredDate}
		expr += ", #preferredDate = :preferredDate"
	}
	if patch.PreferredTime != nil {
		names["#preferredTime"] = "preferredTime"
		values[":preferredTime"] = &types.AttributeValueMemberS{Value: *patch.PreferredTime}
		expr += ", #preferredTime = :preferredTime"
	}
	if patch.Notes != nil {
		names["#notes"] = "notes"
		values[":notes"] = &types.AttributeValueMemberS{Value: *patch.Notes}
		expr += ", #notes = :notes"
	}

	return &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"chatRoomId":    &types.AttributeValueMemberS{Value: chatRoomID},
			"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(appointmentId)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// patchApplied confirms every patched field is present as written on the
// re-read record.
func patchApplied(record *appointment.Appointment, patch Patch) bool {
	if record == nil {
		return false
	}
	if patch.Status != nil && record.Status != *patch.Status {
		return false
	}
	if patch.SuggestedTime != nil {
		if record.SuggestedTime == nil || !record.SuggestedTime.SameSlot(patch.SuggestedTime) {
			return false
		}
	}
	if patch.PreferredDate != nil && record.PreferredDate != *patch.PreferredDate {
		return false
	}
	if patch.PreferredTime != nil && record.PreferredTime != *patch.PreferredTime {
		return false
	}
	if patch.Notes != nil && record.Notes != *patch.Notes {
		return false
	}
	return true
}
