// Package handlers answers Telegram updates: selection commands, single
// photos and albums.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"vibe-mind/internal/mediagroup"
	"vibe-mind/internal/pipeline"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/session"
	"vibe-mind/internal/storage"
	"vibe-mind/internal/telegram"
)

// Messenger is the part of the Telegram client the handler needs.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTyping(chatID int64)
	SendDocument(chatID int64, name string, data []byte, caption string) error
	DownloadDataURL(ctx context.Context, fileID string) (string, error)
}

type Options struct {
	Telegram  Messenger
	Pipeline  *pipeline.Pipeline
	Profiles  *profile.Registry
	Platforms *platform.Registry
	Sessions  *session.Store
	Files     *storage.Files
	Index     *storage.Index
	Logger    *slog.Logger
}

type Handler struct {
	tg         Messenger
	pipeline   *pipeline.Pipeline
	profiles   *profile.Registry
	platforms  *platform.Registry
	sessions   *session.Store
	files      *storage.Files
	index      *storage.Index
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}

	return &Handler{
		tg:        opts.Telegram,
		pipeline:  opts.Pipeline,
		profiles:  opts.Profiles,
		platforms: opts.Platforms,
		sessions:  sessions,
		files:     opts.Files,
		index:     opts.Index,
		logger:    logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	var userID int64
	var username string
	if msg.From != nil {
		userID = msg.From.ID
		username = msg.From.UserName
	}

	if msg.IsCommand() {
		return h.handleCommand(chatID, username, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, username, msg)
	}

	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return h.processPhotos(ctx, chatID, username, msg.Caption, []string{doc.FileID})
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, "Send me a screenshot or mockup and I will turn it into an implementation prompt. /help lists the options.")
	}

	return nil
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.processPhotos(ctx, group.ChatID, group.Username, group.Caption, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, username string, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.processPhotos(ctx, chatID, username, msg.Caption, []string{fileID})
}

// processPhotos downloads every file concurrently, then analyses them one by
// one so replies arrive in album order.
func (h *Handler) processPhotos(ctx context.Context, chatID int64, username, caption string, fileIDs []string) error {
	h.tg.SendTyping(chatID)

	images := make([]string, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			dataURL, err := h.tg.DownloadDataURL(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = dataURL
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "Could not download the image. Please send it again.")
	}

	intent := parseCaption(caption, h.isPlatform)
	sel := h.sessions.Selection(chatID, username)
	if intent.Mode != "" {
		sel.Mode = string(intent.Mode)
	}
	if intent.Platform != "" {
		sel.PlatformKey = intent.Platform
	}
	if intent.Scenario != "" {
		sel.Scenario = intent.Scenario
	}

	for i, img := range images {
		header := ""
		if len(images) > 1 {
			header = fmt.Sprintf("Image %d/%d\n\n", i+1, len(images))
		}
		if err := h.analyzeOne(ctx, chatID, sel, intent.Message, img, fileIDs[i], header); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) analyzeOne(ctx context.Context, chatID int64, sel session.Selection, message, image, fileID, header string) error {
	h.tg.SendTyping(chatID)

	mode, err := pipeline.ParseMode(sel.Mode)
	if err != nil {
		mode = pipeline.ModePrompt
	}
	profileKey, _, err := h.pipeline.ResolveProfile(sel.ProfileKey, true)
	if err != nil {
		return h.tg.SendText(chatID, "No designer profiles are loaded, so I cannot analyse images yet.")
	}

	var projectContext map[string]any
	if message = strings.TrimSpace(message); message != "" {
		projectContext = map[string]any{"message": message}
	}

	res, err := h.pipeline.Analyze(ctx, pipeline.Request{
		Image:       image,
		Label:       "telegram:" + fileID,
		ProfileKey:  profileKey,
		PlatformKey: sel.PlatformKey,
		Context:     projectContext,
	})
	if err != nil {
		h.logger.Error("analysis failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, header+"Analysis failed: "+err.Error())
	}

	out, err := h.pipeline.Render(res, mode, pipeline.RenderOptions{Scenario: sel.Scenario})
	if err != nil {
		h.logger.Error("render failed", "chat_id", chatID, "mode", mode, "err", err)
		return h.tg.SendText(chatID, header+"Could not render the result: "+err.Error())
	}

	h.persist(ctx, res)
	n := h.sessions.RecordAnalysis(chatID)
	h.logger.Info("telegram analysis sent", "chat_id", chatID, "mode", mode, "platform", res.PlatformKey, "count", n)

	summary := fmt.Sprintf("%s%s for %s, confidence %.0f%%", header, res.Profile.Name, res.PlatformKey, res.Handoff.ConfidenceScore*100)
	if len(res.Warnings) > 0 {
		summary += "\nWarnings:\n- " + strings.Join(res.Warnings, "\n- ")
	}

	if mode == pipeline.ModeJSON {
		return h.tg.SendDocument(chatID, "design_handoff.json", []byte(out), summary)
	}
	if err := h.tg.SendText(chatID, header+out); err != nil {
		return err
	}
	if len(res.Warnings) > 0 {
		return h.tg.SendText(chatID, "Warnings:\n- "+strings.Join(res.Warnings, "\n- "))
	}
	return nil
}

func (h *Handler) persist(ctx context.Context, res pipeline.Result) {
	if h.files == nil {
		return
	}
	path, err := h.files.SaveHandoff(res.Handoff)
	if err != nil {
		h.logger.Warn("could not save handoff", "err", err)
		return
	}
	if h.index != nil {
		if err := h.index.Record(ctx, res.Handoff, "handoff", path); err != nil {
			h.logger.Warn("could not index handoff", "err", err)
		}
	}
}

func (h *Handler) isPlatform(key string) bool {
	if h.platforms == nil {
		return false
	}
	_, err := h.platforms.Get(key)
	return err == nil
}

func (h *Handler) handleCommand(chatID int64, username string, msg *tgbotapi.Message) error {
	arg := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"Vibe Mind\n\n"+
				"Send a UI screenshot and I will describe its layout, colors and components "+
				"and write a ready-to-paste prompt for your build platform.\n\n"+helpText)
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "profiles":
		return h.tg.SendText(chatID, h.listProfiles(h.sessions.Selection(chatID, username).ProfileKey))
	case "platforms":
		return h.tg.SendText(chatID, h.listPlatforms(h.sessions.Selection(chatID, username).PlatformKey))
	case "profile":
		if arg == "" {
			return h.tg.SendText(chatID, "Current profile: "+h.sessions.Selection(chatID, username).ProfileKey)
		}
		key := strings.ToLower(arg)
		if h.profiles == nil {
			return h.tg.SendText(chatID, "No profiles are loaded.")
		}
		if _, err := h.profiles.Get(key); err != nil {
			return h.tg.SendText(chatID, fmt.Sprintf("Unknown profile %q.\n\n%s", arg, h.listProfiles("")))
		}
		h.sessions.Update(chatID, username, func(s *session.Selection) { s.ProfileKey = key })
		return h.tg.SendText(chatID, "Profile set to "+key)
	case "platform":
		if arg == "" {
			return h.tg.SendText(chatID, "Current platform: "+h.sessions.Selection(chatID, username).PlatformKey)
		}
		key := strings.ToLower(arg)
		if !h.isPlatform(key) {
			return h.tg.SendText(chatID, fmt.Sprintf("Unknown platform %q.\n\n%s", arg, h.listPlatforms("")))
		}
		h.sessions.Update(chatID, username, func(s *session.Selection) { s.PlatformKey = key })
		return h.tg.SendText(chatID, "Platform set to "+key)
	case "mode":
		if arg == "" {
			return h.tg.SendText(chatID, "Current mode: "+h.sessions.Selection(chatID, username).Mode+"\nAvailable: "+modeList())
		}
		mode, err := pipeline.ParseMode(arg)
		if err != nil {
			return h.tg.SendText(chatID, fmt.Sprintf("Unknown mode %q. Available: %s", arg, modeList()))
		}
		h.sessions.Update(chatID, username, func(s *session.Selection) { s.Mode = string(mode) })
		return h.tg.SendText(chatID, "Mode set to "+string(mode))
	case "scenario":
		sel := h.sessions.Update(chatID, username, func(s *session.Selection) { s.Scenario = strings.ToLower(arg) })
		if sel.Scenario == "" {
			return h.tg.SendText(chatID, "Scenario cleared. Platform mode uses the first scenario.")
		}
		return h.tg.SendText(chatID, "Scenario set to "+sel.Scenario)
	case "clear":
		h.sessions.Clear(chatID)
		return h.tg.SendText(chatID, "Selection reset to defaults.")
	default:
		return h.tg.SendText(chatID, "Unknown command. Use /help.")
	}
}

const helpText = "Commands:\n" +
	"/profiles - list designer profiles\n" +
	"/platforms - list build platforms\n" +
	"/profile <key> - choose a profile\n" +
	"/platform <key> - choose a platform\n" +
	"/mode <json|prompt|report|platform> - choose the output\n" +
	"/scenario <name> - choose the platform scenario\n" +
	"/clear - reset your selection\n\n" +
	"Caption hashtags apply to one photo: #lovable #prompt #scenario=b_feed"

func modeList() string {
	names := make([]string, 0, len(pipeline.Modes))
	for _, m := range pipeline.Modes {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func (h *Handler) listProfiles(current string) string {
	if h.profiles == nil || h.profiles.Len() == 0 {
		return "No profiles are loaded."
	}
	var b strings.Builder
	b.WriteString("Designer profiles:\n")
	all := h.profiles.All()
	for _, key := range h.profiles.Keys() {
		marker := "  "
		if key == current {
			marker = "* "
		}
		p := all[key]
		fmt.Fprintf(&b, "%s%s - %s: %s\n", marker, key, p.Name, p.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) listPlatforms(current string) string {
	if h.platforms == nil || h.platforms.Len() == 0 {
		return "No platforms are loaded."
	}
	var b strings.Builder
	b.WriteString("Platforms:\n")
	all := h.platforms.All()
	for _, key := range h.platforms.Keys() {
		marker := "  "
		if key == current {
			marker = "* "
		}
		cfg := all[key]
		scenarios := cfg.ScenarioKeys()
		fmt.Fprintf(&b, "%s%s - %s", marker, key, cfg.PlatformName)
		if len(scenarios) > 0 {
			fmt.Fprintf(&b, " (scenarios: %s)", strings.Join(scenarios, ", "))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Validate reports configuration mistakes before the update loop starts.
func (h *Handler) Validate() error {
	if h.tg == nil {
		return errors.New("telegram client is not configured")
	}
	if h.pipeline == nil {
		return errors.New("pipeline is not configured")
	}
	return nil
}
