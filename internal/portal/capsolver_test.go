package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/h2non/gock.v1"
)

func testCapsolverConfig() CapsolverConfig {
	return CapsolverConfig{
		Endpoint:     "https://captcha.test",
		APIKey:       "cap-key",
		SiteKey:      "site-key",
		PageURL:      "https://portal.test/search",
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		MaxPolls:     5,
	}
}

func TestCapsolverSolve(t *testing.T) {
	defer gock.Off()

	gock.New("https://captcha.test").
		Post("/createTask").
		JSON(map[string]any{
			"clientKey": "cap-key",
			"task": map[string]any{
				"type":       "ReCaptchaV2TaskProxyLess",
				"websiteURL": "https://portal.test/search",
				"websiteKey": "site-key",
			},
		}).
		Reply(200).
		JSON(map[string]any{"errorId": 0, "taskId": "task-1"})
	gock.New("https://captcha.test").
		Post("/getTaskResult").
		Reply(200).
		JSON(map[string]any{"errorId": 0, "status": "processing"})
	gock.New("https://captcha.test").
		Post("/getTaskResult").
		Reply(200).
		JSON(map[string]any{
			"errorId":  0,
			"status":   "ready",
			"solution": map[string]any{"gRecaptchaResponse": "solved-token"},
		})

	solver := NewCapsolver(testCapsolverConfig(), zap.NewNop())
	got, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "solved-token", got)
	require.True(t, gock.IsDone())
}

func TestCapsolverSolveCreateTaskRejected(t *testing.T) {
	defer gock.Off()

	gock.New("https://captcha.test").
		Post("/createTask").
		Reply(200).
		JSON(map[string]any{
			"errorId":          1,
			"errorCode":        "ERROR_KEY_DENIED_ACCESS",
			"errorDescription": "invalid client key",
		})

	solver := NewCapsolver(testCapsolverConfig(), zap.NewNop())
	_, err := solver.Solve(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ERROR_KEY_DENIED_ACCESS")
}

func TestCapsolverSolveGivesUpAfterMaxPolls(t *testing.T) {
	defer gock.Off()

	gock.New("https://captcha.test").
		Post("/createTask").
		Reply(200).
		JSON(map[string]any{"errorId": 0, "taskId": "task-slow"})
	gock.New("https://captcha.test").
		Post("/getTaskResult").
		Times(5).
		Reply(200).
		JSON(map[string]any{"errorId": 0, "status": "processing"})

	solver := NewCapsolver(testCapsolverConfig(), zap.NewNop())
	_, err := solver.Solve(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not ready")
}
