// Package menu owns the conversational entry points of the bot: the welcome
// message sent on follow, the buttons menu and the seat lookup instructions.
//
// Menu buttons are postbacks whose data is a keyword, so a tap is routed by
// the kernel exactly like typing the keyword.
package menu
