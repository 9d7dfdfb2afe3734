// Package main provides localization for the framecap CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI output and summary labels.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Decode videos into letterboxed BGR frames and export them as images.": "動画をレターボックス済みBGRフレームにデコードし、画像として書き出します。",

		// Version command
		"framecap version %s": "framecap バージョン %s",

		// Probe output
		"File":       "ファイル",
		"Codec":      "コーデック",
		"Decoder":    "デコーダー",
		"Resolution": "解像度",
		"Frame Rate": "フレームレート",
		"Duration":   "再生時間",

		// Summary
		"Extraction Summary":      "抽出サマリー",
		"Source":                  "入力",
		"Settings":                "設定",
		"Results":                 "結果",
		"Item":                    "項目",
		"Value":                   "値",
		"Frame Count":             "フレーム数",
		"Unknown":                 "不明",
		"Target Size":             "出力サイズ",
		"Native":                  "元のサイズ",
		"Pad Color":               "余白の色",
		"Buffer Policy":           "バッファポリシー",
		"Image Format":            "画像形式",
		"Every Nth Frame":         "抽出間隔（フレーム）",
		"Max Frames":              "最大フレーム数",
		"Frames Delivered":        "デコード済みフレーム",
		"Frames Written":          "書き出したフレーム",
		"Packets Read":            "読み込んだパケット",
		"Corrupt Packets Skipped": "スキップした破損パケット",
		"Bytes Written":           "書き出しサイズ",
		"Elapsed":                 "処理時間",
		"Contact Sheet":           "コンタクトシート",
		"Decode Error":            "デコードエラー",
		"Generated at":            "生成日時",
	})
}
