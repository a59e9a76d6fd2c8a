package platform

import (
	"context"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/retry"
)

type retryingClient struct {
	next Client
	exec *retry.Executor
}

// NewRetryingClient decorates c so that every call goes through exec
func NewRetryingClient(c Client, exec *retry.Executor) Client {
	return &retryingClient{next: c, exec: exec}
}

func (r *retryingClient) ListStaff(ctx context.Context) ([]booking.Staff, error) {
	return retry.Execute(ctx, r.exec, "list staff", r.next.ListStaff)
}

func (r *retryingClient) ListServices(ctx context.Context) ([]booking.Service, error) {
	return retry.Execute(ctx, r.exec, "list services", r.next.ListServices)
}

func (r *retryingClient) ListClients(ctx context.Context, page, count int) ([]booking.Client, error) {
	return retry.Execute(ctx, r.exec, "list clients", func(ctx context.Context) ([]booking.Client, error) {
		return r.next.ListClients(ctx, page, count)
	})
}

func (r *retryingClient) ListRecords(ctx context.Context, query RecordQuery) ([]booking.Record, error) {
	return retry.Execute(ctx, r.exec, "list records", func(ctx context.Context) ([]booking.Record, error) {
		return r.next.ListRecords(ctx, query)
	})
}

func (r *retryingClient) CreateRecord(ctx context.Context, input RecordInput) (booking.Record, error) {
	return retry.Execute(ctx, r.exec, "create record", func(ctx context.Context) (booking.Record, error) {
		return r.next.CreateRecord(ctx, input)
	})
}

func (r *retryingClient) UpdateRecord(ctx context.Context, id int64, input RecordInput) (booking.Record, error) {
	return retry.Execute(ctx, r.exec, "update record", func(ctx context.Context) (booking.Record, error) {
		return r.next.UpdateRecord(ctx, id, input)
	})
}

func (r *retryingClient) DeleteRecord(ctx context.Context, id int64) error {
	_, err := retry.Execute(ctx, r.exec, "delete record", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.DeleteRecord(ctx, id)
	})
	return err
}
