package websocket

import "encoding/json"

// WriteJSON marshals v and sends it as a single Text message.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(TextMessage, data, true)
}

// ReadJSON reads the next complete message and unmarshals it into v.
func (c *Conn) ReadJSON(v any) error {
	_, data, err := c.readFullMessage(defaultReadChunkSize)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
