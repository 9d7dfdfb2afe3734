package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Extracting frames from %s":         "%s からフレームを抽出中",
		"Wrote %d frames to %s":             "%d フレームを %s に書き出しました",
		"Contact sheet saved to %s":         "コンタクトシートを %s に保存しました",
		"Summary saved to %s":               "サマリーを %s に保存しました",
		"Interrupted, shutting down...":     "中断されました。シャットダウン中...",
		"Failed to open input: %s":          "入力を開けませんでした: %s",
		"Failed to export frames: %s":       "フレームの書き出しに失敗しました: %s",
		"Failed to write contact sheet: %s": "コンタクトシートの書き出しに失敗しました: %s",
		"Failed to write summary: %s":       "サマリーの書き出しに失敗しました: %s",

		// Capture session
		"Opened %s: %s %dx%d, %.2f fps, %d frames": "%s を開きました: %s %dx%d, %.2f fps, %d フレーム",
		"Decoder backend: %s":                      "デコーダーバックエンド: %s",
		"End of stream after %d frames":            "%d フレームでストリーム終端に達しました",
		"Closed %s after %d frames":                "%d フレーム処理後に %s を閉じました",
		"Skipping corrupt packet: %s":              "破損したパケットをスキップします: %s",
		"Decoding failed: %s":                      "デコードに失敗しました: %s",
		"Failed to save debug output: %s":          "デバッグ出力の保存に失敗しました: %s",

		// Demuxer
		"Opened %s: %s %dx%d, %d samples, timescale %d": "%s を開きました: %s %dx%d, %d サンプル, タイムスケール %d",

		// Decoder backends
		"Using %s backend for %s":               "%[2]s に %[1]s バックエンドを使用します",
		"Backend %s failed: %s":                 "バックエンド %s は利用できません: %s",
		"Started ffmpeg decoder for %s (%dx%d)": "%s 用の ffmpeg デコーダーを起動しました (%dx%d)",
		"Started libaom decoder (%dx%d)":        "libaom デコーダーを起動しました (%dx%d)",
		"Started libavcodec decoder %s (%dx%d)": "libavcodec デコーダー %s を起動しました (%dx%d)",
		"ffmpeg decoder closed":                 "ffmpeg デコーダーを終了しました",
		"libaom decoder closed":                 "libaom デコーダーを終了しました",
		"libavcodec decoder closed":             "libavcodec デコーダーを終了しました",

		// Export and sheet stages
		"Exporting %d frames with %d workers":    "%d フレームを %d ワーカーで書き出し中",
		"Exported %d frames":                     "%d フレームを書き出しました",
		"Drawing %d thumbnails on a %dx%d sheet": "%d 枚のサムネイルを %dx%d のシートに描画中",
	})
}
