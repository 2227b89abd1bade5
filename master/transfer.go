package master

// writeByte stages b for the next transmit primitive.
func (c *controller) writeByte(b byte) {
	c.regs.WriteData(b)
}

// readByte returns the byte received by the last receive primitive. The data
// register is overwritten by the next primitive.
func (c *controller) readByte() byte {
	return c.regs.ReadData()
}
