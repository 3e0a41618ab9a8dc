package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(eventType Type, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      jsonData,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EncodeEnvelope は宛先付きメッセージをJSONにシリアライズする。
func EncodeEnvelope(recipientID string, ev Event) ([]byte, error) {
	body, err := json.Marshal(Envelope{
		RecipientID: recipientID,
		Event:       ev,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("エンベロープのシリアライズに失敗: %w", err)
	}
	return body, nil
}

// DecodeEnvelope はJSONから宛先付きメッセージを復元する。
// 宛先またはイベント種類が欠けている場合はエラーを返す。
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("エンベロープのデシリアライズに失敗: %w", err)
	}
	if env.RecipientID == "" || env.Event.Type == "" {
		return nil, fmt.Errorf("エンベロープの宛先またはイベント種類が空です")
	}
	return &env, nil
}
