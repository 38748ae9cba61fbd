package messages

import (
	"fmt"
	"strings"
	"time"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func Title(text string) string {
	return fmt.Sprintf("✨ <b>%s</b>", Escape(text))
}

func FileLine(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("📄 <b>File:</b> %s", Escape(name))
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again."
}

func ErrorUnsupportedMessageType() string {
	return "🤖 <b>I can't handle that</b>\nSend a video or document, or use /help."
}

func ErrorUnknownCommand() string {
	return "❓ <b>Unknown command</b>\nSee /help."
}

func StartWelcome() string {
	return "👋 <b>New batch started</b>\n\n" +
		"1. Send the videos or documents to rename.\n" +
		"2. Set a pattern with <code>/rename Naruto S1E01</code> or switch to /manual.\n" +
		"3. Send /process when ready."
}

func Help() string {
	return "ℹ️ <b>Commands</b>\n" +
		"/start - start a new batch\n" +
		"/rename &lt;title&gt; S&lt;season&gt;E&lt;episode&gt; [quality] [tag] - automatic naming\n" +
		"/manual - send one name per file as text\n" +
		"/automatic - back to automatic naming\n" +
		"/process - rename and send the files\n" +
		"/cancel - stop the running batch\n" +
		"/stop - cancel and forget the batch\n" +
		"/status - batch and account info\n" +
		"/setthumb, /viewthumb, /deletethumb - custom thumbnail"
}

func RenameUsage() string {
	return "❌ <b>Usage</b>\n<code>/rename Naruto S1E01 [1080p] [tag]</code>"
}

func RenameSaved(pattern string) string {
	return "✅ <b>Rename pattern saved</b>\n📐 " + Escape(pattern)
}

func ModeManual() string {
	return "✍️ <b>Manual mode</b>\nSend one name per file, in queue order."
}

func ModeAutomatic() string {
	return "🤖 <b>Automatic mode</b>\nNames come from the /rename pattern."
}

func ManualNameAdded(name string, count, files int) string {
	return fmt.Sprintf("📝 <b>Name %d/%d:</b> %s", count, files, Escape(name))
}

func FileQueued(fileName string, count, max int) string {
	return fmt.Sprintf("📥 <b>Queued %d/%d</b>\n%s", count, max, FileLine(fileName))
}

func QueueFull(max int) string {
	return fmt.Sprintf("⚠️ <b>Queue is full</b>\nA batch holds at most %d files. Send /process.", max)
}

func BatchQueued(files int) string {
	return fmt.Sprintf("⚙️ <b>Processing %d files...</b>", files)
}

func BatchAlreadyRunning() string {
	return "⏳ <b>A batch is already running</b>\nUse /cancel to stop it."
}

func BatchStarted(runID string, files int) string {
	return fmt.Sprintf("⚙️ <b>Batch started</b>\n%d files\n<code>%s</code>", files, Escape(runID))
}

func FileProgressLabel(index, total int, name string) string {
	return fmt.Sprintf("%d/%d %s", index, total, name)
}

func BatchDone(files int, bytes string, elapsed time.Duration) string {
	return fmt.Sprintf("✅ <b>Done</b>\n%d files, %s in %s", files, bytes, elapsed.Round(time.Second))
}

func BatchCancelled(completed, total int) string {
	return fmt.Sprintf("🛑 <b>Cancelled</b>\n%d of %d files were sent.", completed, total)
}

func BatchFailed(completed, total int, reason string) string {
	return fmt.Sprintf("🚫 <b>Batch failed</b>\n%s\n%d of %d files were sent.", Escape(reason), completed, total)
}

func NoFiles() string {
	return "📭 <b>No files queued</b>\nSend videos or documents first."
}

func NameMismatch(names, files int) string {
	return fmt.Sprintf("⚠️ <b>Names don't match files</b>\n%d names for %d files.", names, files)
}

func MissingConfig() string {
	return "⚠️ <b>No rename pattern</b>\nUse <code>/rename Naruto S1E01</code> or /manual."
}

func NothingToCancel() string {
	return "ℹ️ <b>Nothing is running</b>"
}

func CancelRequested() string {
	return "🛑 <b>Cancelling...</b>"
}

func SessionStopped() string {
	return "👋 <b>Batch cleared</b>\nSend /start to begin again."
}

func Status(mode string, files, names int, active bool, thumb bool, totalFiles, totalBytes string, batches int64) string {
	state := "idle"
	if active {
		state = "running"
	}
	return fmt.Sprintf("📊 <b>Status</b>\nState: %s\nMode: %s\nQueued files: %d\nManual names: %d\nThumbnail: %t\n\n"+
		"<b>All time</b>\nFiles: %s\nBytes: %s\nBatches: %d",
		state, Escape(mode), files, names, thumb, totalFiles, totalBytes, batches)
}

func HistoryLine(at time.Time, outcome string, completed, total int, size string) string {
	return fmt.Sprintf("%s  %s, %d/%d files, %s", at.UTC().Format("Jan 2 15:04"), Escape(outcome), completed, total, size)
}

// History is appended to Status. It is empty when there are no batches yet.
func History(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n\n<b>Recent batches</b>\n" + strings.Join(lines, "\n")
}

func ThumbSend() string {
	return "🖼 <b>Send a photo</b> to use as thumbnail."
}

func ThumbSaved() string {
	return "✅ <b>Thumbnail saved</b>"
}

func ThumbNone() string {
	return "ℹ️ <b>No thumbnail set</b>\nUse /setthumb."
}

func ThumbDeleted() string {
	return "🗑 <b>Thumbnail deleted</b>"
}

func IncompleteTransfer(fileName string) string {
	return "Download of " + fileName + " was incomplete."
}

func GenericFailure() string {
	return "Unexpected error."
}

func NotManualMode() string {
	return "ℹ️ <b>Text ignored</b>\nSwitch to /manual to send names, or use /help."
}

func ThumbNotAwaited() string {
	return "ℹ️ <b>Photo ignored</b>\nUse /setthumb first, or send the file as a document."
}

func BtnManual() string    { return "✍️ Manual" }
func BtnAutomatic() string { return "🤖 Automatic" }
func BtnProcess() string   { return "▶️ Process" }
func BtnStatus() string    { return "📊 Status" }

func CallbackInvalid() string {
	return "This button is no longer valid."
}
