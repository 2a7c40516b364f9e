package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	asrapi "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/asr/v20190614"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"github.com/lexiqai/voice-transcriber/internal/observability"
	"github.com/lexiqai/voice-transcriber/internal/resilience"
)

// Request constants. Audio is always sent inline in Data.
const (
	sourceTypeRawData   = 1
	convertNumModeSmart = 1
	resTextFormatPlain  = 0
	channelMono         = 1
)

// taskStatusNames maps DescribeTaskStatus's numeric Status when StatusStr is empty
var taskStatusNames = map[int64]TaskState{
	0: TaskWaiting,
	1: TaskDoing,
	2: TaskSuccess,
	3: TaskFailed,
}

// TencentConfig holds the credentials and endpoint of Tencent Cloud ASR
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Endpoint  string

	// Insecure talks plain HTTP to Endpoint, for local stand-ins of the API
	Insecure bool
}

// TencentProvider implements Provider on the Tencent Cloud ASR API. Every
// call goes through a circuit breaker so a provider outage fails fast.
type TencentProvider struct {
	client  *asrapi.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewTencentProvider creates the SDK client and wires breaker state into metrics
func NewTencentProvider(cfg TencentConfig, breaker *resilience.CircuitBreaker) (*TencentProvider, error) {
	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	if cfg.Endpoint != "" {
		cpf.HttpProfile.Endpoint = cfg.Endpoint
	}
	if cfg.Insecure {
		cpf.HttpProfile.Scheme = "HTTP"
	}

	client, err := asrapi.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("failed to create tencent asr client: %w", err)
	}

	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("tencent_asr", 5, 30*time.Second)
	}
	logger := observability.GetLogger().With().Str("component", "tencent_asr").Logger()
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		logger.Warn().Str("breaker", name).Str("state", state.String()).Msg("Circuit breaker state changed")
	})

	return &TencentProvider{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// HealthCheck reports the provider unusable while its circuit is open
func (p *TencentProvider) HealthCheck(_ context.Context) (bool, error) {
	state, requests, failures, rate := p.breaker.GetStats()
	if state == resilience.StateOpen {
		return false, fmt.Errorf("circuit breaker %s after %d failures in %d requests (%.1f%% failed)",
			state, failures, requests, rate)
	}
	return true, nil
}

// SentenceRecognition calls the short-audio endpoint
func (p *TencentProvider) SentenceRecognition(ctx context.Context, req *Request) (*SentenceResult, error) {
	request := asrapi.NewSentenceRecognitionRequest()
	request.EngSerViceType = common.StringPtr(req.EngineType)
	request.SourceType = common.Uint64Ptr(sourceTypeRawData)
	request.VoiceFormat = common.StringPtr(string(req.Format))
	request.Data = common.StringPtr(req.Data)
	request.DataLen = common.Int64Ptr(int64(req.DataLen))
	request.ConvertNumMode = common.Int64Ptr(convertNumModeSmart)

	var response *asrapi.SentenceRecognitionResponse
	err := p.call(ctx, "SentenceRecognition", func() error {
		var err error
		response, err = p.client.SentenceRecognitionWithContext(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	if response.Response == nil {
		return nil, fmt.Errorf("%w: SentenceRecognition returned an empty response", ErrProvider)
	}

	return &SentenceResult{
		Result:          deref(response.Response.Result),
		AudioDurationMs: derefInt(response.Response.AudioDuration),
		RequestID:       deref(response.Response.RequestId),
	}, nil
}

// CreateRecTask submits a recording recognition task
func (p *TencentProvider) CreateRecTask(ctx context.Context, req *Request) (TaskID, error) {
	request := asrapi.NewCreateRecTaskRequest()
	request.EngineModelType = common.StringPtr(req.EngineType)
	request.ChannelNum = common.Uint64Ptr(channelMono)
	request.ResTextFormat = common.Uint64Ptr(resTextFormatPlain)
	request.SourceType = common.Uint64Ptr(sourceTypeRawData)
	request.Data = common.StringPtr(req.Data)
	request.DataLen = common.Uint64Ptr(uint64(req.DataLen))
	request.ConvertNumMode = common.Int64Ptr(convertNumModeSmart)

	var response *asrapi.CreateRecTaskResponse
	err := p.call(ctx, "CreateRecTask", func() error {
		var err error
		response, err = p.client.CreateRecTaskWithContext(ctx, request)
		return err
	})
	if err != nil {
		return 0, err
	}
	if response.Response == nil || response.Response.Data == nil || response.Response.Data.TaskId == nil {
		return 0, fmt.Errorf("%w: CreateRecTask returned no task id", ErrProvider)
	}

	return TaskID(*response.Response.Data.TaskId), nil
}

// DescribeTaskStatus queries the state of a recognition task
func (p *TencentProvider) DescribeTaskStatus(ctx context.Context, id TaskID) (*Task, error) {
	request := asrapi.NewDescribeTaskStatusRequest()
	request.TaskId = common.Uint64Ptr(uint64(id))

	var response *asrapi.DescribeTaskStatusResponse
	err := p.call(ctx, "DescribeTaskStatus", func() error {
		var err error
		response, err = p.client.DescribeTaskStatusWithContext(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	if response.Response == nil || response.Response.Data == nil {
		return nil, fmt.Errorf("%w: DescribeTaskStatus returned no data for task %d", ErrProvider, id)
	}

	data := response.Response.Data
	state := TaskState(strings.ToLower(deref(data.StatusStr)))
	if state == "" && data.Status != nil {
		state = taskStatusNames[*data.Status]
	}

	task := &Task{
		ID:       id,
		State:    state,
		Result:   deref(data.Result),
		ErrorMsg: deref(data.ErrorMsg),
	}
	if data.AudioDuration != nil {
		task.AudioDuration = *data.AudioDuration
	}
	return task, nil
}

// outageCodePrefixes are the SDK error codes that say the provider itself is
// in trouble. Everything else (InvalidParameter, FailedOperation on the
// submitted audio, AuthFailure) is about the request and stays out of the breaker.
var outageCodePrefixes = []string{
	"InternalError",
	"ResourceUnavailable",
	"RequestLimitExceeded",
	"ClientError.NetworkError",
	"ClientError.HttpStatusCodeError",
}

// isOutage reports whether err should count against the shared circuit.
// A call whose own context ended failed because of its caller.
func isOutage(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sdkErr *sdkerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		for _, prefix := range outageCodePrefixes {
			if strings.HasPrefix(sdkErr.GetCode(), prefix) {
				return true
			}
		}
		return false
	}
	return true
}

// call runs fn through the breaker and wraps its failure as a provider error
func (p *TencentProvider) call(ctx context.Context, action string, fn func() error) error {
	err := p.breaker.CallClassified(fn, func(err error) bool {
		return isOutage(ctx, err)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %s: %w", ErrProvider, action, err)
	}

	if isOutage(ctx, err) {
		observability.IncrementCircuitBreakerFailures(p.breaker.Name())
	}

	var sdkErr *sdkerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		p.logger.Error().
			Str("action", action).
			Str("code", sdkErr.GetCode()).
			Str("request_id", sdkErr.GetRequestId()).
			Msg(sdkErr.GetMessage())
		return fmt.Errorf("%w: %s: %s (%s)", ErrProvider, action, sdkErr.GetMessage(), sdkErr.GetCode())
	}

	p.logger.Error().Err(err).Str("action", action).Msg("Tencent ASR call failed")
	return fmt.Errorf("%w: %s: %w", ErrProvider, action, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
