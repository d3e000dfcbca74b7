package wallet

import "time"

const (
	operationCredit        = "credit"
	operationDebit         = "debit"
	operationCreateAccount = "create_account"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	transactionIDPrefix       = "txn"
	transactionIDSuffixLength = 12

	defaultListLimit = 50
	maxListLimit     = 200

	defaultMaxAttempts = 5
	defaultRetryBudget = 1500 * time.Millisecond
	retryBackoffBase   = 10 * time.Millisecond
)
