package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) expectPersist(orderID int64, total string) {
	tx := newTx()
	tx.On("Commit").Return(nil)
	f.repo.On("BeginTx", mock.Anything).Return(tx, nil).Once()
	f.repo.On("GetOrderForUpdate", mock.Anything, tx, orderID).
		Return(&Order{ID: orderID, TotalAmount: decimal.RequireFromString(total)}, nil).Once()
	f.repo.On("InsertPayment", mock.Anything, tx, mock.AnythingOfType("*orders.Payment")).
		Run(func(args mock.Arguments) { args.Get(2).(*Payment).ID = 100 }).
		Return(nil).Once()
}

func TestPaymentUseCase_RecordPayment_Success(t *testing.T) {
	// Arrange
	f := newFixture()
	f.expectPersist(4, "99.95")

	statusTx := newTx()
	statusTx.On("Commit").Return(nil)
	f.repo.On("BeginTx", mock.Anything).Return(statusTx, nil).Once()
	f.repo.On("GetOrderForUpdate", mock.Anything, statusTx, int64(4)).
		Return(&Order{ID: 4, PaymentStatus: PaymentStatusUnpaid}, nil).Once()
	f.repo.On("HasSuccessfulPayment", mock.Anything, statusTx, int64(4)).Return(true, nil)
	f.repo.On("MarkOrderPaid", mock.Anything, statusTx, int64(4)).Return(true, nil)

	// Act
	payment, err := f.payments.ProcessPayment(context.Background(), 4, decimal.RequireFromString("99.95"), "")

	// Assert
	require.NoError(t, err)
	assert.EqualValues(t, 100, payment.ID)
	assert.Equal(t, "SIMULATED", payment.Method)
	assert.Equal(t, PaymentStateSuccess, payment.Status)
	assert.False(t, payment.Flagged)
	f.repo.AssertExpectations(t)
	// persist and the status hook take the order lock one after the other
	assert.Equal(t, []string{"order:4", "order:4"}, f.locker.keys)
}

func TestPaymentUseCase_RecordPayment_AmountMismatch(t *testing.T) {
	f := newFixture()
	f.expectPersist(4, "99.95")

	payment, err := f.payments.ProcessPayment(context.Background(), 4, decimal.RequireFromString("1.00"), "card")

	assert.ErrorIs(t, err, ErrAmountMismatch)
	require.NotNil(t, payment)
	assert.True(t, payment.Flagged)
	assert.Equal(t, "card", payment.Method)
	f.repo.AssertNotCalled(t, "MarkOrderPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUseCase_RecordPayment_Failed(t *testing.T) {
	f := newFixture()
	f.expectPersist(4, "99.95")

	payment, err := f.payments.RecordPayment(context.Background(), RecordPaymentRequest{
		OrderID: 4,
		Amount:  decimal.RequireFromString("1.00"),
		Status:  "failed",
	})

	require.NoError(t, err)
	assert.Equal(t, PaymentStateFailed, payment.Status)
	assert.Equal(t, "UNKNOWN", payment.Method)
	assert.False(t, payment.Flagged)
	f.repo.AssertNotCalled(t, "MarkOrderPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUseCase_RecordPayment_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.payments.RecordPayment(ctx, RecordPaymentRequest{OrderID: 4, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.payments.RecordPayment(ctx, RecordPaymentRequest{OrderID: 4, Amount: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.payments.RecordPayment(ctx, RecordPaymentRequest{OrderID: 4, Amount: decimal.RequireFromString("99.951")})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.payments.RecordPayment(ctx, RecordPaymentRequest{OrderID: 4, Amount: decimal.NewFromInt(5), Status: "refunded"})
	assert.ErrorIs(t, err, ErrInvalidPaymentState)

	_, err = f.payments.RecordPayment(ctx, RecordPaymentRequest{OrderID: 0, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	f.repo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestPaymentUseCase_RecordPayment_UnknownOrder(t *testing.T) {
	f := newFixture()
	tx := newTx()
	f.repo.On("BeginTx", mock.Anything).Return(tx, nil)
	f.repo.On("GetOrderForUpdate", mock.Anything, tx, int64(9)).Return(nil, ErrOrderNotFound)

	_, err := f.payments.ProcessPayment(context.Background(), 9, decimal.NewFromInt(5), "")

	assert.ErrorIs(t, err, ErrOrderNotFound)
	f.repo.AssertNotCalled(t, "InsertPayment", mock.Anything, mock.Anything, mock.Anything)
}
