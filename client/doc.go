// Package client はAdhyayanバックエンドのGoクライアントSDKを提供する。
//
// 3つの非同期シグナル源（起動時のキャッシュ済みセッション、IDプロバイダーの
// イベントストリーム、明示的なlogin/logout呼び出し）を単一の認証状態に
// 集約するセッション状態機械と、Bearerトークンを自動付与するAPIゲートウェイ
// から構成される。
package client
