package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session level messages (info)
		"Recording %s to %s...":          "%s を %s に録画中...",
		"Recording finished: %d packets": "録画完了: %d パケット",
		"Output saved to %s":             "出力を %s に保存しました",
		"Interrupted, shutting down...":  "中断されました。シャットダウン中...",
		"Captured %d frames in %d ms":    "%d フレームを %d ms でキャプチャしました",

		// Capture sources
		"Launching browser":                  "ブラウザを起動中",
		"Launching browser in headless mode": "ヘッドレスモードでブラウザを起動中",
		"Navigating to %s":                   "%s へ移動中",
		"Starting screencast":                "スクリーンキャストを開始",
		"Screencast stopped":                 "スクリーンキャストを停止しました",
		"Browser closed":                     "ブラウザを閉じました",
		"Generating %d test frames":          "%d 枚のテストフレームを生成中",

		// Encoder (warn/error)
		"Dropping frame: %s":                  "フレームを破棄します: %s",
		"Failed to encode frame: %s":          "フレームのエンコードに失敗しました: %s",
		"Failed to write packet: %s":          "パケットの書き込みに失敗しました: %s",
		"Failed to flush codec: %s":           "コーデックのフラッシュに失敗しました: %s",
		"Failed to close codec: %s":           "コーデックのクローズに失敗しました: %s",
		"Failed to finalize recording: %s":    "録画のファイナライズに失敗しました: %s",
		"Recording completed with errors: %s": "録画はエラー付きで完了しました: %s",
	})
}
