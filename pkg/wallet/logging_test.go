package wallet

import (
	"context"
	"errors"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsCreditOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "log-acct")
	seedAccount(test, store, accountID, 0)
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))
	amount := mustPositiveAmount(test, 100)

	receipt, err := service.Credit(context.Background(), accountID, amount, TypeDeposit, mustMetadata(test, `{"action":"test"}`), nil)
	if err != nil {
		test.Fatalf("credit failed: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationCredit || entry.AccountID != accountID || entry.Amount != amount.AsCredit() {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.TransactionID != receipt.Transaction.ID {
		test.Fatalf("expected transaction id %s, got %s", receipt.Transaction.ID.String(), entry.TransactionID.String())
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "log-err")
	seedAccount(test, store, accountID, 0)
	store.updateErr = errors.New("boom")
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	_, err := service.Credit(context.Background(), accountID, mustPositiveAmount(test, 100), TypeDeposit, mustMetadata(test, "{}"), nil)
	if err == nil {
		test.Fatalf("expected error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != operationStatusError || logger.entries[0].Error == nil {
		test.Fatalf("expected error log entry, got %+v", logger.entries[0])
	}
}
