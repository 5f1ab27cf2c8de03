// Package notify forwards committed order changes to the channel webhook a
// tenant configured in its settings.
package notify
