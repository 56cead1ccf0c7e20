package chat

// WelcomeText is shown before the first message.
const WelcomeText = `Welcome!

Type a message and press Enter to send it.

The reply streams into the transcript as it arrives.
Ctrl+L starts a new conversation, Ctrl+C quits.`
