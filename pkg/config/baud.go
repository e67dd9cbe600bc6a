package config

// baudRates is the table of selectable serial speeds. Settings refer to a
// speed by its index.
var baudRates = []int{600, 1200, 2400, 4800, 9600, 14400, 19200, 28800, 38400, 56000, 57600, 115200}

// maxMeterBaudIndex limits the meter link to 14400 baud.
const maxMeterBaudIndex = 5

// BaudIndex returns the table index of rate.
func BaudIndex(rate int) (int, bool) {
	for i, r := range baudRates {
		if r == rate {
			return i, true
		}
	}
	return 0, false
}

// BaudRate returns the rate at index, 0 for an index outside the table.
func BaudRate(index int) int {
	if index < 0 || index >= len(baudRates) {
		return 0
	}
	return baudRates[index]
}

// BaudRates returns all selectable rates in ascending order.
func BaudRates() []int {
	return append([]int(nil), baudRates...)
}
