// Package mainmenu is the public entry point for posting notifications that
// must stay on screen for the whole main-menu phase.
//
// A Messenger wraps the delivery queue with the call-site defaults
// (size 25, red, attributed to QModManager, visible for a million seconds):
//
//	m.AddMainMenuMessage("MyMod failed to load", mainmenu.WithCaller("MyMod"))
//
// Calls never block and never return an error; failures are logged.
//
// The package also has small rich-text helpers (B, I, Color, Size, NoParse)
// for callers that turn autoformatting off and build their own markup.
package mainmenu
