package scheduler_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/monitor"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/scheduler"
)

type cyclerMock struct {
	mock.Mock
}

func (c *cyclerMock) RunScheduled(ctx context.Context) (*model.CycleResult, error) {
	args := c.Called(ctx)
	res, _ := args.Get(0).(*model.CycleResult)
	return res, args.Error(1)
}

func (c *cyclerMock) RunStartup(ctx context.Context) (*model.CycleResult, error) {
	args := c.Called(ctx)
	res, _ := args.Get(0).(*model.CycleResult)
	return res, args.Error(1)
}

func (c *cyclerMock) RunManual(ctx context.Context) (*model.CycleResult, error) {
	args := c.Called(ctx)
	res, _ := args.Get(0).(*model.CycleResult)
	return res, args.Error(1)
}

func (c *cyclerMock) Busy() bool {
	return c.Called().Bool(0)
}

func (c *cyclerMock) Catalog() []model.ProductSpec {
	return []model.ProductSpec{{Name: "MSI MPG 321URXW", FloorPrice: decimal.NewFromInt(799)}}
}

type senderMock struct {
	mock.Mock
}

func (s *senderMock) Send(ctx context.Context, text string) error {
	return s.Called(ctx, text).Error(0)
}

type replies struct {
	texts []string
	err   error
}

func (r *replies) reply(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return r.err
}

func alertResult() *model.CycleResult {
	return &model.CycleResult{
		Trigger:    model.TriggerManual,
		FinishedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Alerts: []model.AlertEvent{
			model.FloorReached("MSI MPG 321URXW", "amazon", decimal.NewFromInt(790), decimal.NewFromInt(799)),
		},
		Report: []model.ReportEntry{
			{Product: "MSI MPG 321URXW", Source: "amazon", Found: true, Price: decimal.NewFromInt(790), Floor: decimal.NewFromInt(799)},
		},
	}
}

func TestHandleCommand_ManualCheck(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"revisar", "check", "precios"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mon := &cyclerMock{}
			mon.On("Busy").Return(false)
			mon.On("RunManual", mock.Anything).Return(alertResult(), nil)
			s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)

			r := &replies{}
			s.HandleCommand(context.Background(), notifier.Command{Name: name}, r.reply)

			require.Len(t, r.texts, 3)
			assert.Equal(t, notifier.MsgAck, r.texts[0])
			assert.Contains(t, r.texts[1], "Precios actuales")
			assert.Contains(t, r.texts[1], "790.00 €")
			assert.Contains(t, r.texts[2], "Alertas de precio")
			mon.AssertExpectations(t)
		})
	}
}

func TestHandleCommand_ReportWithoutAlerts(t *testing.T) {
	t.Parallel()

	res := alertResult()
	res.Alerts = nil
	mon := &cyclerMock{}
	mon.On("Busy").Return(false)
	mon.On("RunManual", mock.Anything).Return(res, nil)
	s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)

	r := &replies{}
	s.HandleCommand(context.Background(), notifier.Command{Name: "revisar"}, r.reply)

	require.Len(t, r.texts, 2)
	assert.Contains(t, r.texts[1], "Precios actuales")
}

func TestHandleCommand_Busy(t *testing.T) {
	t.Parallel()

	mon := &cyclerMock{}
	mon.On("Busy").Return(true)
	s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)

	r := &replies{}
	s.HandleCommand(context.Background(), notifier.Command{Name: "revisar"}, r.reply)

	assert.Equal(t, []string{notifier.MsgBusy}, r.texts)
	mon.AssertNotCalled(t, "RunManual", mock.Anything)
}

func TestHandleCommand_RejectedAfterAck(t *testing.T) {
	t.Parallel()

	mon := &cyclerMock{}
	mon.On("Busy").Return(false)
	mon.On("RunManual", mock.Anything).Return(nil, monitor.ErrCycleInProgress)
	s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)

	r := &replies{}
	s.HandleCommand(context.Background(), notifier.Command{Name: "check"}, r.reply)

	assert.Equal(t, []string{notifier.MsgAck, notifier.MsgBusy}, r.texts)
}

func TestHandleCommand_Help(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"start", "help", "unknown"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mon := &cyclerMock{}
			s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)

			r := &replies{}
			s.HandleCommand(context.Background(), notifier.Command{Name: name}, r.reply)

			require.Len(t, r.texts, 1)
			assert.Contains(t, r.texts[0], "MSI MPG 321URXW")
			assert.Contains(t, r.texts[0], "/revisar")
		})
	}
}

func TestRunStartupNow_SendsAlerts(t *testing.T) {
	t.Parallel()

	mon := &cyclerMock{}
	mon.On("RunStartup", mock.Anything).Return(alertResult(), nil)
	sender := &senderMock{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Alertas de precio")
	})).Return(errors.New("telegram down"))

	s := scheduler.NewScheduler(context.Background(), mon, sender, time.UTC)
	s.RunStartupNow()

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRunStartupNow_SilentWithoutAlerts(t *testing.T) {
	t.Parallel()

	res := alertResult()
	res.Alerts = nil
	mon := &cyclerMock{}
	mon.On("RunStartup", mock.Anything).Return(res, nil)
	sender := &senderMock{}

	s := scheduler.NewScheduler(context.Background(), mon, sender, time.UTC)
	s.RunStartupNow()

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestScheduler_RegisterAndRun(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	mon := &cyclerMock{}
	mon.On("RunScheduled", mock.Anything).Run(func(mock.Arguments) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}).Return(&model.CycleResult{}, nil)

	s := scheduler.NewScheduler(context.Background(), mon, &senderMock{}, time.UTC)
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled cycle did not run")
	}
	s.Stop()
}

func TestScheduler_RegisterRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := scheduler.NewScheduler(context.Background(), &cyclerMock{}, &senderMock{}, time.UTC)
	require.Error(t, s.Register("every day"))
	require.NoError(t, s.Register(scheduler.DefaultCron))
}
