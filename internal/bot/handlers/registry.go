package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// silCallbackPrefix prefixes the movement buttons' callback data.
const silCallbackPrefix = "sil:"

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// Free text is not registered here; it reaches NewTextHandler as the default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	safe := []tgbot.Middleware{Recover(deps)}

	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  safe,
	}
	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  safe,
	}
	handlers["/sil"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "sil",
		Handler:     NewSilHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  safe,
	}
	handlers["sil_callback"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     silCallbackPrefix,
		Handler:     NewMovementCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  safe,
	}
	handlers["/top"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "top",
		Handler:     NewTopHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  safe,
	}
	handlers["/table"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "table",
		Handler:     NewTableHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  safe,
	}

	if deps.FlushErrors != nil {
		handlers["/errors"] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     "errors",
			Handler:     NewErrorsHandler(deps),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  []tgbot.Middleware{Recover(deps), AdminOnly(deps)},
		}
	}

	return handlers
}
