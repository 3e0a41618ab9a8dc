package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

// PushMessage はプッシュ通知の表示内容。
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushResult はトークン1件ごとの送信結果。
type PushResult struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PushReport は一斉送信の結果。
type PushReport struct {
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Responses    []PushResult `json:"responses"`
}

// PushSender はデバイストークンへのプッシュ通知の一斉送信を行う。
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, msg PushMessage) (*PushReport, error)
}

// FCMSender はFirebase Cloud Messaging HTTP v1 APIを使用するPushSender。
type FCMSender struct {
	service     *fcm.Service
	parent      string
	concurrency int
}

// NewFCMSender は新しいFCMSenderを生成する。
// optsには認証情報やエンドポイントを指定する。
func NewFCMSender(ctx context.Context, projectID string, concurrency int, opts ...option.ClientOption) (*FCMSender, error) {
	service, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("FCMクライアントの生成に失敗: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &FCMSender{
		service:     service,
		parent:      "projects/" + projectID,
		concurrency: concurrency,
	}, nil
}

// SendMulticast は各トークンへ並列に送信し、トークンごとの結果を入力順で返す。
// 個々の送信失敗は結果に記録し、エラーとしては返さない。
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, msg PushMessage) (*PushReport, error) {
	results := make([]PushResult, len(tokens))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			results[i] = s.send(ctx, token, msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &PushReport{Responses: results}
	for _, r := range results {
		if r.Success {
			report.SuccessCount++
		} else {
			report.FailureCount++
		}
	}
	return report, nil
}

// send は1件のトークンへ送信する。
func (s *FCMSender) send(ctx context.Context, token string, msg PushMessage) PushResult {
	resp, err := s.service.Projects.Messages.Send(s.parent, &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return PushResult{Token: token, Error: err.Error()}
	}
	return PushResult{Token: token, Success: true, MessageID: resp.Name}
}

// DisabledPushSender はプッシュ配信が設定されていない場合のPushSender。
type DisabledPushSender struct{}

// SendMulticast は常にErrPushNotConfiguredを返す。
func (DisabledPushSender) SendMulticast(context.Context, []string, PushMessage) (*PushReport, error) {
	return nil, ErrPushNotConfigured
}

// TokenList は単一の文字列または文字列の配列として受け取るデバイストークンの一覧。
type TokenList []string

// UnmarshalJSON は文字列と配列の両方を受け付ける。
func (t *TokenList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TokenList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("fcm_tokensは文字列または文字列の配列で指定してください")
	}
	*t = many
	return nil
}

// Normalize は前後の空白を除き、空文字列と重複を取り除いた一覧を返す。
func (t TokenList) Normalize() []string {
	trimmed := make([]string, 0, len(t))
	for _, token := range t {
		trimmed = append(trimmed, strings.TrimSpace(token))
	}
	return uniqueIDs(trimmed)
}
