// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcd1602 is a container for the HD44780 I²C backpack driver and
// its emulated test bus.
//
// See the hd44780 package for the driver, and lcdemu for a software
// model of the backpack + controller that implements i2c.Bus.
package lcd1602
