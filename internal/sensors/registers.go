// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/inertial_mlc/internal/ism330dhcx"
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is the metadata shown by the register debugger.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns the register metadata of one bank. The sensor hub bank
// has no map.
func RegisterMap(b ism330dhcx.Bank) ([]RegisterInfo, error) {
	switch b {
	case ism330dhcx.UserBank:
		return userBankRegisters(), nil
	case ism330dhcx.EmbeddedFuncBank:
		return embeddedBankRegisters(), nil
	default:
		return nil, fmt.Errorf("no register map for %s bank", b)
	}
}

const odrValues = "0=off, 1=12.5Hz, 2=26Hz, 3=52Hz, 4=104Hz, 5=208Hz, 6=417Hz, 7=833Hz, 8=1667Hz, 9=3333Hz, 10=6667Hz"

func userBankRegisters() []RegisterInfo {
	return []RegisterInfo{
		{Address: "0x01", Name: "FUNC_CFG_ACCESS", Description: "Register bank selection", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "REG_ACCESS", Description: "Bank", Values: "0=user, 1=sensor hub, 2=embedded functions"},
			}},
		{Address: "0x02", Name: "PIN_CTRL", Description: "SDO pull-up", Access: "RW", Default: "0x3F",
			BitFields: []BitField{
				{Bits: "6", Name: "SDO_PU_EN", Description: "SDO/SA0 pull-up", Values: "0=disconnected, 1=enabled"},
			}},

		// FIFO configuration
		{Address: "0x07", Name: "FIFO_CTRL1", Description: "FIFO watermark low byte", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "WTM[7:0]", Description: "Watermark threshold, in records", Values: "0-255"},
			}},
		{Address: "0x08", Name: "FIFO_CTRL2", Description: "FIFO watermark high bit and compression", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "STOP_ON_WTM", Description: "Limit FIFO depth to the watermark", Values: "0=off, 1=on"},
				{Bits: "4", Name: "ODRCHG_EN", Description: "Batch CFG-Change records on ODR change", Values: "0=off, 1=on"},
				{Bits: "0", Name: "WTM8", Description: "Watermark bit 8", Values: "0-1"},
			}},
		{Address: "0x09", Name: "FIFO_CTRL3", Description: "Batch data rates", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:4", Name: "BDR_GY", Description: "Gyroscope batch data rate", Values: odrValues},
				{Bits: "3:0", Name: "BDR_XL", Description: "Accelerometer batch data rate", Values: odrValues},
			}},
		{Address: "0x0A", Name: "FIFO_CTRL4", Description: "FIFO mode and timestamp batching", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "DEC_TS_BATCH", Description: "Timestamp decimation", Values: "0=off, 1=every record, 2=every 8, 3=every 32"},
				{Bits: "5:4", Name: "ODR_T_BATCH", Description: "Temperature batch rate", Values: "0=off, 1=1.6Hz, 2=12.5Hz, 3=52Hz"},
				{Bits: "2:0", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=bypass, 1=fifo, 3=continuous-to-fifo, 4=bypass-to-continuous, 6=continuous, 7=bypass-to-fifo"},
			}},
		{Address: "0x0B", Name: "COUNTER_BDR_REG1", Description: "Batch counter control", Access: "RW", Default: "0x00"},
		{Address: "0x0C", Name: "COUNTER_BDR_REG2", Description: "Batch counter threshold low byte", Access: "RW", Default: "0x00"},

		// Interrupt routing
		{Address: "0x0D", Name: "INT1_CTRL", Description: "INT1 routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DEN_DRDY_FLAG", Description: "DEN data ready", Values: "0=off, 1=on"},
				{Bits: "6", Name: "INT1_CNT_BDR", Description: "Batch counter", Values: "0=off, 1=on"},
				{Bits: "5", Name: "INT1_FIFO_FULL", Description: "FIFO full", Values: "0=off, 1=on"},
				{Bits: "4", Name: "INT1_FIFO_OVR", Description: "FIFO overrun", Values: "0=off, 1=on"},
				{Bits: "3", Name: "INT1_FIFO_TH", Description: "FIFO threshold", Values: "0=off, 1=on"},
				{Bits: "2", Name: "INT1_BOOT", Description: "Boot status", Values: "0=off, 1=on"},
				{Bits: "1", Name: "INT1_DRDY_G", Description: "Gyro data ready", Values: "0=off, 1=on"},
				{Bits: "0", Name: "INT1_DRDY_XL", Description: "Accel data ready", Values: "0=off, 1=on"},
			}},
		{Address: "0x0E", Name: "INT2_CTRL", Description: "INT2 routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "INT2_CNT_BDR", Description: "Batch counter", Values: "0=off, 1=on"},
				{Bits: "5", Name: "INT2_FIFO_FULL", Description: "FIFO full", Values: "0=off, 1=on"},
				{Bits: "4", Name: "INT2_FIFO_OVR", Description: "FIFO overrun", Values: "0=off, 1=on"},
				{Bits: "3", Name: "INT2_FIFO_TH", Description: "FIFO threshold", Values: "0=off, 1=on"},
				{Bits: "2", Name: "INT2_DRDY_TEMP", Description: "Temperature data ready", Values: "0=off, 1=on"},
				{Bits: "1", Name: "INT2_DRDY_G", Description: "Gyro data ready", Values: "0=off, 1=on"},
				{Bits: "0", Name: "INT2_DRDY_XL", Description: "Accel data ready", Values: "0=off, 1=on"},
			}},
		{Address: "0x0F", Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0x6B"},

		// Sensor control
		{Address: "0x10", Name: "CTRL1_XL", Description: "Accelerometer control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:4", Name: "ODR_XL", Description: "Accelerometer output data rate", Values: odrValues},
				{Bits: "3:2", Name: "FS_XL", Description: "Accelerometer full scale", Values: "0=±2g, 1=±16g, 2=±4g, 3=±8g"},
				{Bits: "1", Name: "LPF2_XL_EN", Description: "Second low-pass filter", Values: "0=off, 1=on"},
			}},
		{Address: "0x11", Name: "CTRL2_G", Description: "Gyroscope control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:4", Name: "ODR_G", Description: "Gyroscope output data rate", Values: odrValues},
				{Bits: "3:2", Name: "FS_G", Description: "Gyroscope full scale", Values: "0=±250dps, 1=±500dps, 2=±1000dps, 3=±2000dps"},
				{Bits: "1", Name: "FS_125", Description: "±125 dps", Values: "0=off, 1=on"},
				{Bits: "0", Name: "FS_4000", Description: "±4000 dps", Values: "0=off, 1=on"},
			}},
		{Address: "0x12", Name: "CTRL3_C", Description: "Interface control", Access: "RW", Default: "0x04",
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content", Values: "0=normal, 1=reboot"},
				{Bits: "6", Name: "BDU", Description: "Block data update", Values: "0=continuous, 1=until read"},
				{Bits: "5", Name: "H_LACTIVE", Description: "Interrupt active level", Values: "0=high, 1=low"},
				{Bits: "4", Name: "PP_OD", Description: "Interrupt pad mode", Values: "0=push-pull, 1=open drain"},
				{Bits: "3", Name: "SIM", Description: "SPI mode", Values: "0=4-wire, 1=3-wire"},
				{Bits: "2", Name: "IF_INC", Description: "Address auto-increment", Values: "0=off, 1=on"},
				{Bits: "0", Name: "SW_RESET", Description: "Software reset", Values: "0=normal, 1=reset"},
			}},
		{Address: "0x13", Name: "CTRL4_C", Description: "Control 4", Access: "RW", Default: "0x00"},
		{Address: "0x14", Name: "CTRL5_C", Description: "Self-test and rounding", Access: "RW", Default: "0x00"},
		{Address: "0x15", Name: "CTRL6_C", Description: "Trigger mode and gyro LPF1", Access: "RW", Default: "0x00"},
		{Address: "0x16", Name: "CTRL7_G", Description: "Gyro high-performance and HPF", Access: "RW", Default: "0x00"},
		{Address: "0x17", Name: "CTRL8_XL", Description: "Accel filtering", Access: "RW", Default: "0x00"},
		{Address: "0x18", Name: "CTRL9_XL", Description: "DEN and I3C", Access: "RW", Default: "0xE0"},
		{Address: "0x19", Name: "CTRL10_C", Description: "Timestamp enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "TIMESTAMP_EN", Description: "Timestamp counter", Values: "0=off, 1=on"},
			}},

		// Status and outputs
		{Address: "0x1A", Name: "ALL_INT_SRC", Description: "Interrupt sources", Access: "R"},
		{Address: "0x1B", Name: "WAKE_UP_SRC", Description: "Wake-up sources", Access: "R"},
		{Address: "0x1C", Name: "TAP_SRC", Description: "Tap sources", Access: "R"},
		{Address: "0x1D", Name: "D6D_SRC", Description: "Orientation sources", Access: "R"},
		{Address: "0x1E", Name: "STATUS_REG", Description: "Data ready flags", Access: "R",
			BitFields: []BitField{
				{Bits: "2", Name: "TDA", Description: "Temperature available"},
				{Bits: "1", Name: "GDA", Description: "Gyro available"},
				{Bits: "0", Name: "XLDA", Description: "Accel available"},
			}},
		{Address: "0x20", Name: "OUT_TEMP_L", Description: "Temperature low byte", Access: "R"},
		{Address: "0x21", Name: "OUT_TEMP_H", Description: "Temperature high byte", Access: "R"},
		{Address: "0x22", Name: "OUTX_L_G", Description: "Gyro X low byte", Access: "R"},
		{Address: "0x23", Name: "OUTX_H_G", Description: "Gyro X high byte", Access: "R"},
		{Address: "0x24", Name: "OUTY_L_G", Description: "Gyro Y low byte", Access: "R"},
		{Address: "0x25", Name: "OUTY_H_G", Description: "Gyro Y high byte", Access: "R"},
		{Address: "0x26", Name: "OUTZ_L_G", Description: "Gyro Z low byte", Access: "R"},
		{Address: "0x27", Name: "OUTZ_H_G", Description: "Gyro Z high byte", Access: "R"},
		{Address: "0x28", Name: "OUTX_L_A", Description: "Accel X low byte", Access: "R"},
		{Address: "0x29", Name: "OUTX_H_A", Description: "Accel X high byte", Access: "R"},
		{Address: "0x2A", Name: "OUTY_L_A", Description: "Accel Y low byte", Access: "R"},
		{Address: "0x2B", Name: "OUTY_H_A", Description: "Accel Y high byte", Access: "R"},
		{Address: "0x2C", Name: "OUTZ_L_A", Description: "Accel Z low byte", Access: "R"},
		{Address: "0x2D", Name: "OUTZ_H_A", Description: "Accel Z high byte", Access: "R"},
		{Address: "0x35", Name: "EMB_FUNC_STATUS_MAINPAGE", Description: "Embedded function status", Access: "R"},
		{Address: "0x36", Name: "FSM_STATUS_A_MAINPAGE", Description: "FSM 1-8 interrupt status", Access: "R"},
		{Address: "0x37", Name: "FSM_STATUS_B_MAINPAGE", Description: "FSM 9-16 interrupt status", Access: "R"},
		{Address: "0x38", Name: "MLC_STATUS_MAINPAGE", Description: "MLC 1-8 interrupt status", Access: "R"},
		{Address: "0x3A", Name: "FIFO_STATUS1", Description: "FIFO level low byte", Access: "R",
			BitFields: []BitField{
				{Bits: "7:0", Name: "DIFF_FIFO[7:0]", Description: "Unread records"},
			}},
		{Address: "0x3B", Name: "FIFO_STATUS2", Description: "FIFO flags and level high bits", Access: "R",
			BitFields: []BitField{
				{Bits: "7", Name: "FIFO_WTM_IA", Description: "Level at or above watermark"},
				{Bits: "6", Name: "FIFO_OVR_IA", Description: "Overrun"},
				{Bits: "5", Name: "FIFO_FULL_IA", Description: "Full at the next ODR"},
				{Bits: "4", Name: "COUNTER_BDR_IA", Description: "Batch counter reached threshold"},
				{Bits: "3", Name: "FIFO_OVR_LATCHED", Description: "Latched overrun"},
				{Bits: "1:0", Name: "DIFF_FIFO[9:8]", Description: "Unread records, high bits"},
			}},
		{Address: "0x40", Name: "TIMESTAMP0", Description: "Timestamp byte 0, 25 us/LSB", Access: "R"},
		{Address: "0x41", Name: "TIMESTAMP1", Description: "Timestamp byte 1", Access: "R"},
		{Address: "0x42", Name: "TIMESTAMP2", Description: "Timestamp byte 2", Access: "R"},
		{Address: "0x43", Name: "TIMESTAMP3", Description: "Timestamp byte 3", Access: "R"},

		// Interrupt configuration
		{Address: "0x56", Name: "INT_CFG0", Description: "Interrupt latching and clearing", Access: "RW", Default: "0x00"},
		{Address: "0x58", Name: "INT_CFG1", Description: "Global interrupt enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "INTERRUPTS_ENABLE", Description: "Basic interrupts", Values: "0=off, 1=on"},
			}},
		{Address: "0x5E", Name: "MD1_CFG", Description: "INT1 function routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "INT1_SLEEP_CHANGE", Description: "Activity/inactivity"},
				{Bits: "6", Name: "INT1_SINGLE_TAP", Description: "Single tap"},
				{Bits: "5", Name: "INT1_WU", Description: "Wake-up"},
				{Bits: "4", Name: "INT1_FF", Description: "Free-fall"},
				{Bits: "3", Name: "INT1_DOUBLE_TAP", Description: "Double tap"},
				{Bits: "2", Name: "INT1_6D", Description: "6D orientation"},
				{Bits: "1", Name: "INT1_EMB_FUNC", Description: "Embedded functions"},
				{Bits: "0", Name: "INT1_SHUB", Description: "Sensor hub end op"},
			}},
		{Address: "0x5F", Name: "MD2_CFG", Description: "INT2 function routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "INT2_SLEEP_CHANGE", Description: "Activity/inactivity"},
				{Bits: "6", Name: "INT2_SINGLE_TAP", Description: "Single tap"},
				{Bits: "5", Name: "INT2_WU", Description: "Wake-up"},
				{Bits: "4", Name: "INT2_FF", Description: "Free-fall"},
				{Bits: "3", Name: "INT2_DOUBLE_TAP", Description: "Double tap"},
				{Bits: "2", Name: "INT2_6D", Description: "6D orientation"},
				{Bits: "1", Name: "INT2_EMB_FUNC", Description: "Embedded functions"},
				{Bits: "0", Name: "INT2_TIMESTAMP", Description: "Timestamp overflow"},
			}},
		{Address: "0x63", Name: "INTERNAL_FREQ_FINE", Description: "ODR trimming", Access: "R"},

		// FIFO output
		{Address: "0x78", Name: "FIFO_DATA_OUT_TAG", Description: "FIFO record tag; reading pops a record", Access: "R",
			BitFields: []BitField{
				{Bits: "7:3", Name: "TAG_SENSOR", Description: "Record source", Values: "1=gyro, 2=accel, 3=temperature, 4=timestamp, 5=cfg change"},
				{Bits: "2:1", Name: "TAG_CNT", Description: "2-bit record counter"},
				{Bits: "0", Name: "TAG_PARITY", Description: "Parity"},
			}},
		{Address: "0x79", Name: "FIFO_DATA_OUT_X_L", Description: "FIFO payload byte 0", Access: "R"},
		{Address: "0x7E", Name: "FIFO_DATA_OUT_Z_H", Description: "FIFO payload byte 5", Access: "R"},
	}
}

func embeddedBankRegisters() []RegisterInfo {
	return []RegisterInfo{
		{Address: "0x02", Name: "PAGE_SEL", Description: "Paged memory page", Access: "RW", Default: "0x01",
			BitFields: []BitField{
				{Bits: "7:4", Name: "PAGE_SEL", Description: "Page number", Values: "0-15"},
				{Bits: "0", Name: "RESERVED", Description: "Must stay 1"},
			}},
		{Address: "0x04", Name: "EMB_FUNC_EN_A", Description: "Pedometer, tilt and significant motion", Access: "RW", Default: "0x00"},
		{Address: "0x05", Name: "EMB_FUNC_EN_B", Description: "FSM and MLC enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4", Name: "MLC_EN", Description: "Machine learning core", Values: "0=off, 1=on"},
				{Bits: "0", Name: "FSM_EN", Description: "Finite state machine", Values: "0=off, 1=on"},
			}},
		{Address: "0x08", Name: "PAGE_ADDRESS", Description: "Offset inside the selected page, advanced after each PAGE_VALUE transfer", Access: "RW", Default: "0x00"},
		{Address: "0x09", Name: "PAGE_VALUE", Description: "Data port of the paged memory", Access: "RW", Default: "0x00"},
		{Address: "0x0A", Name: "EMB_FUNC_INT1", Description: "INT1 embedded routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "INT1_FSM_LC", Description: "FSM long counter"},
			}},
		{Address: "0x0B", Name: "FSM_INT1_A", Description: "FSM 1-8 on INT1", Access: "RW", Default: "0x00"},
		{Address: "0x0C", Name: "FSM_INT1_B", Description: "FSM 9-16 on INT1", Access: "RW", Default: "0x00"},
		{Address: "0x0D", Name: "MLC_INT1", Description: "MLC 1-8 on INT1", Access: "RW", Default: "0x00"},
		{Address: "0x0E", Name: "EMB_FUNC_INT2", Description: "INT2 embedded routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "INT2_FSM_LC", Description: "FSM long counter"},
			}},
		{Address: "0x0F", Name: "FSM_INT2_A", Description: "FSM 1-8 on INT2", Access: "RW", Default: "0x00"},
		{Address: "0x10", Name: "FSM_INT2_B", Description: "FSM 9-16 on INT2", Access: "RW", Default: "0x00"},
		{Address: "0x11", Name: "MLC_INT2", Description: "MLC 1-8 on INT2", Access: "RW", Default: "0x00"},
		{Address: "0x12", Name: "EMB_FUNC_STATUS", Description: "Embedded function status", Access: "R"},
		{Address: "0x13", Name: "FSM_STATUS_A", Description: "FSM 1-8 status", Access: "R"},
		{Address: "0x14", Name: "FSM_STATUS_B", Description: "FSM 9-16 status", Access: "R"},
		{Address: "0x15", Name: "MLC_STATUS", Description: "MLC 1-8 status", Access: "R"},
		{Address: "0x17", Name: "PAGE_RW", Description: "Paged memory direction", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "EMB_FUNC_LIR", Description: "Latched embedded interrupts"},
				{Bits: "6", Name: "PAGE_WRITE", Description: "Write through PAGE_VALUE"},
				{Bits: "5", Name: "PAGE_READ", Description: "Read through PAGE_VALUE"},
			}},
		{Address: "0x44", Name: "EMB_FUNC_FIFO_CFG", Description: "Embedded batching", Access: "RW", Default: "0x00"},
		{Address: "0x46", Name: "FSM_ENABLE_A", Description: "FSM 1-8 enable", Access: "RW", Default: "0x00"},
		{Address: "0x47", Name: "FSM_ENABLE_B", Description: "FSM 9-16 enable", Access: "RW", Default: "0x00"},
		{Address: "0x48", Name: "FSM_LONG_COUNTER_L", Description: "Long counter low byte", Access: "RW", Default: "0x00"},
		{Address: "0x49", Name: "FSM_LONG_COUNTER_H", Description: "Long counter high byte", Access: "RW", Default: "0x00"},
		{Address: "0x4A", Name: "FSM_LONG_COUNTER_CLEAR", Description: "Long counter reset", Access: "RW", Default: "0x00"},
		{Address: "0x4C", Name: "FSM_OUTS1", Description: "FSM 1 output", Access: "R"},
		{Address: "0x5F", Name: "EMB_FUNC_ODR_CFG_B", Description: "FSM data rate", Access: "RW", Default: "0x4B",
			BitFields: []BitField{
				{Bits: "4:3", Name: "FSM_ODR", Description: "FSM rate", Values: "0=12.5Hz, 1=26Hz, 2=52Hz, 3=104Hz"},
			}},
		{Address: "0x60", Name: "EMB_FUNC_ODR_CFG_C", Description: "MLC data rate", Access: "RW", Default: "0x15",
			BitFields: []BitField{
				{Bits: "5:4", Name: "MLC_ODR", Description: "MLC rate", Values: "0=12.5Hz, 1=26Hz, 2=52Hz, 3=104Hz"},
			}},
		{Address: "0x62", Name: "STEP_COUNTER_L", Description: "Step counter low byte", Access: "R"},
		{Address: "0x63", Name: "STEP_COUNTER_H", Description: "Step counter high byte", Access: "R"},
		{Address: "0x64", Name: "EMB_FUNC_SRC", Description: "Pedometer source", Access: "RW"},
		{Address: "0x66", Name: "EMB_FUNC_INIT_A", Description: "Pedometer, tilt and significant motion init", Access: "RW", Default: "0x00"},
		{Address: "0x67", Name: "EMB_FUNC_INIT_B", Description: "FSM and MLC init", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4", Name: "MLC_INIT", Description: "Restart the MLC"},
				{Bits: "0", Name: "FSM_INIT", Description: "Restart the FSM"},
			}},
		{Address: "0x70", Name: "MLC0_SRC", Description: "MLC decision tree 1 output", Access: "R"},
		{Address: "0x71", Name: "MLC1_SRC", Description: "MLC decision tree 2 output", Access: "R"},
		{Address: "0x72", Name: "MLC2_SRC", Description: "MLC decision tree 3 output", Access: "R"},
		{Address: "0x73", Name: "MLC3_SRC", Description: "MLC decision tree 4 output", Access: "R"},
		{Address: "0x74", Name: "MLC4_SRC", Description: "MLC decision tree 5 output", Access: "R"},
		{Address: "0x75", Name: "MLC5_SRC", Description: "MLC decision tree 6 output", Access: "R"},
		{Address: "0x76", Name: "MLC6_SRC", Description: "MLC decision tree 7 output", Access: "R"},
		{Address: "0x77", Name: "MLC7_SRC", Description: "MLC decision tree 8 output", Access: "R"},
	}
}
