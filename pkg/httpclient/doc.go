// Package httpclient はサービス間通信用のHTTPクライアントを提供する。
//
// JSONリクエスト/レスポンスのシリアライズ、サービス間トークンの付与、
// 2xx以外のレスポンスのStatusErrorへの変換を共通化する。
package httpclient
