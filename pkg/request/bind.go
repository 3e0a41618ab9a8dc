// Package request はGinハンドラで共通して使用するリクエストボディの読み取り処理を提供する。
package request

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// registerOnce はバリデータへのタグ名関数の登録を一度だけ行うためのもの。
var registerOnce sync.Once

// FieldError は1つのフィールドに対する入力エラーを表す。
type FieldError struct {
	// Field はJSON上のフィールド名。
	Field string `json:"field"`
	// Message はエラー内容。
	Message string `json:"message"`
}

// ValidationError はリクエストボディの入力エラーを表す。
type ValidationError struct {
	// Fields はフィールドごとのエラー。JSONとして解釈できなかった場合は空。
	Fields []FieldError
	// cause は元のエラー。
	cause error
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("リクエストが不正です: %v", e.cause)
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "リクエストが不正です: " + strings.Join(msgs, ", ")
}

// Unwrap は元のエラーを返す。
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// BindJSON はリクエストボディをdstにデコードし、bindingタグで検証する。
// 失敗した場合は*ValidationErrorを返す。
func BindJSON(c *gin.Context, dst any) error {
	registerOnce.Do(useJSONFieldNames)

	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) {
		return &ValidationError{cause: errors.New("リクエストボディが空です")}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{cause: err}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return &ValidationError{Fields: fields, cause: err}
}

// AbortWithError はBindJSONのエラーを400レスポンスとして書き込む。
// ValidationErrorの場合はフィールドごとのエラーも含める。
func AbortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		body["fields"] = verr.Fields
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

// useJSONFieldNames はGinのバリデータがエラーにJSONタグ名を使うように設定する。
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

// describe はバリデーションタグごとの日本語メッセージを返す。
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "email":
		return "メールアドレスの形式が不正です"
	case "min":
		return fmt.Sprintf("%s以上で指定してください", fe.Param())
	case "max":
		return fmt.Sprintf("%s以下で指定してください", fe.Param())
	default:
		return fmt.Sprintf("'%s' の検証に失敗しました", fe.Tag())
	}
}
