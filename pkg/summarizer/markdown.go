package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(fn func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = fn
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a formatter. Labels are left untranslated
// unless WithTranslator is given.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Extraction Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Source"))
	row := tableWriter(&b, t("Item"), t("Value"))
	row(t("File"), s.Source.Path)
	row(t("Codec"), codecLabel(s.Source.Codec, s.Source.FourCC))
	if s.Source.Backend != "" {
		row(t("Decoder"), s.Source.Backend)
	}
	row(t("Resolution"), fmt.Sprintf("%dx%d", s.Source.Width, s.Source.Height))
	row(t("Frame Rate"), fmt.Sprintf("%.2f fps", s.Source.FrameRate))
	if s.Source.FrameCount >= 0 {
		row(t("Frame Count"), fmt.Sprintf("%d", s.Source.FrameCount))
	} else {
		row(t("Frame Count"), t("Unknown"))
	}
	row(t("Duration"), fmt.Sprintf("%d ms", s.Source.DurationMs))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	row = tableWriter(&b, t("Item"), t("Value"))
	if s.Settings.TargetWidth > 0 && s.Settings.TargetHeight > 0 {
		row(t("Target Size"), fmt.Sprintf("%dx%d", s.Settings.TargetWidth, s.Settings.TargetHeight))
	} else {
		row(t("Target Size"), t("Native"))
	}
	if s.Settings.PadColor != "" {
		row(t("Pad Color"), s.Settings.PadColor)
	}
	if s.Settings.BufferPolicy != "" {
		row(t("Buffer Policy"), s.Settings.BufferPolicy)
	}
	if s.Settings.Format != "" {
		row(t("Image Format"), s.Settings.Format)
	}
	if s.Settings.Every > 1 {
		row(t("Every Nth Frame"), fmt.Sprintf("%d", s.Settings.Every))
	}
	if s.Settings.MaxFrames > 0 {
		row(t("Max Frames"), fmt.Sprintf("%d", s.Settings.MaxFrames))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	row = tableWriter(&b, t("Item"), t("Value"))
	row(t("Frames Delivered"), fmt.Sprintf("%d", s.Result.FramesDelivered))
	row(t("Frames Written"), fmt.Sprintf("%d", s.Result.FramesWritten))
	row(t("Packets Read"), fmt.Sprintf("%d", s.Result.PacketsRead))
	row(t("Corrupt Packets Skipped"), fmt.Sprintf("%d", s.Result.Dropped))
	row(t("Bytes Written"), formatBytes(s.Result.BytesWritten))
	row(t("Elapsed"), fmt.Sprintf("%d ms", s.Result.ElapsedMs))
	if s.Result.SheetPath != "" {
		row(t("Contact Sheet"), s.Result.SheetPath)
	}
	if s.Result.Error != "" {
		row(t("Decode Error"), s.Result.Error)
	}
	b.WriteString("\n")

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if f.version != "" {
		footer += fmt.Sprintf(" (framecap %s)", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

// tableWriter writes a two-column table header and returns a row writer.
func tableWriter(b *strings.Builder, left, right string) func(k, v string) {
	fmt.Fprintf(b, "| %s | %s |\n", left, right)
	b.WriteString("|---|---|\n")
	return func(k, v string) {
		fmt.Fprintf(b, "| %s | %s |\n", k, escapeCell(v))
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func codecLabel(codec, fourcc string) string {
	if fourcc == "" {
		return codec
	}
	return fmt.Sprintf("%s (%s)", codec, fourcc)
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
