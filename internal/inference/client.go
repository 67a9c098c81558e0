// Package inference invokes the Bedrock model endpoint that produces the
// analysis. It probes inference-profile support once per run, retries
// transient failures with exponential backoff and classifies everything else
// as fatal.
package inference

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	jsonContentType  = "application/json"

	defaultMaxTokens   = 4096
	defaultMaxAttempts = 3
	initialBackoff     = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
	probeMaxTokens     = 10
	probePrompt        = "Say hello"
)

// Config configures the Bedrock client.
type Config struct {
	Region              string
	ModelID             string
	InferenceProfileARN string // optional; support probed once per run
	MaxTokens           int
	MaxAttempts         int
	DisableSSLVerify    bool
}

// modelInvoker is the slice of the Bedrock runtime API the client needs;
// tests substitute a fake.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client performs single request/response exchanges against the model.
type Client struct {
	api         modelInvoker
	modelID     string
	profileARN  string
	maxTokens   int
	maxAttempts int
	sleep       func(time.Duration)
	log         *zap.Logger

	// Profile support is probed exactly once per run and remembered for the
	// remainder; never a global.
	probeOnce  sync.Once
	useProfile bool
}

// New builds a Client against the real Bedrock runtime in the given region.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.DisableSSLVerify {
		httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		})
		optFns = append(optFns, awsconfig.WithHTTPClient(httpClient))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg, log), nil
}

// NewWithAPI builds a Client around an existing invoker.
func NewWithAPI(api modelInvoker, cfg Config, log *zap.Logger) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Client{
		api:         api,
		modelID:     cfg.ModelID,
		profileARN:  cfg.InferenceProfileARN,
		maxTokens:   maxTokens,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
		log:         log,
	}
}

// anthropic request/response bodies per the Bedrock messages format.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Invoke sends the rendered context to the model and returns the raw
// response text unmodified. Transient failures are retried with exponential
// backoff up to the attempt ceiling; fatal failures propagate immediately.
func (c *Client) Invoke(ctx context.Context, promptText string) (string, error) {
	c.probeOnce.Do(func() { c.probe(ctx) })

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.invokeOnce(ctx, promptText, c.maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isTransient(err) {
			return "", &Error{Transient: false, Attempts: attempt, Err: err}
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := backoff(attempt - 1)
		c.log.Warn("transient inference failure, backing off",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", &Error{Transient: true, Attempts: attempt, Err: ctx.Err()}
		default:
		}
		c.sleep(delay)
	}
	return "", &Error{Transient: true, Attempts: c.maxAttempts, Err: lastErr}
}

// probe issues one minimal request addressed by the inference profile to
// learn whether the backend accepts it. Rejection is remembered and the
// plain model ID used for the remainder of the run.
func (c *Client) probe(ctx context.Context) {
	if c.profileARN == "" {
		c.useProfile = false
		return
	}
	_, err := c.send(ctx, c.profileARN, probePrompt, probeMaxTokens)
	if err != nil && isIdentifierRejection(err) {
		c.log.Warn("inference profile rejected by backend, falling back to model id",
			zap.String("profile", c.profileARN), zap.Error(err))
		c.useProfile = false
		return
	}
	// Transient probe failures do not disqualify the profile; the main call
	// retries anyway.
	c.useProfile = true
}

func (c *Client) invokeOnce(ctx context.Context, promptText string, maxTokens int) (string, error) {
	identifier := c.modelID
	if c.useProfile {
		identifier = c.profileARN
	}
	return c.send(ctx, identifier, promptText, maxTokens)
}

func (c *Client) send(ctx context.Context, identifier, promptText string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []anthropicMessage{{Role: "user", Content: promptText}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(identifier),
		ContentType: aws.String(jsonContentType),
		Accept:      aws.String(jsonContentType),
		Body:        body,
	})
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("model response contained no text content")
	}
	return text.String(), nil
}

// isTransient classifies throttling, model readiness and server-side errors
// as retryable; auth and malformed-request errors are not.
func isTransient(err error) bool {
	var throttle *types.ThrottlingException
	var timeout *types.ModelTimeoutException
	var notReady *types.ModelNotReadyException
	var quota *types.ServiceQuotaExceededException
	var internal *types.InternalServerException
	if errors.As(err, &throttle) || errors.As(err, &timeout) ||
		errors.As(err, &notReady) || errors.As(err, &quota) || errors.As(err, &internal) {
		return true
	}
	// Untyped service codes still arrive as generic API errors.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ServiceUnavailableException", "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// isIdentifierRejection reports whether the backend refused the model
// identifier itself (unknown profile/model), as opposed to failing the call.
func isIdentifierRejection(err error) bool {
	var notFound *types.ResourceNotFoundException
	var validation *types.ValidationException
	return errors.As(err, &notFound) || errors.As(err, &validation)
}

// backoff returns delay for attempt (0-based); exponential with cap.
func backoff(attempt int) time.Duration {
	d := initialBackoff
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d = d * 2
		if d > maxBackoff {
			d = maxBackoff
		}
	}
	return d
}
