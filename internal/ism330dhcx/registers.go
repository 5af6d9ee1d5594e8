// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ism330dhcx drives the register layer of an ST ISM330DHCX inertial
// module: bank switching, the paged extended memory, ODR resolution against the
// FSM/MLC co-processors, interrupt routing and FIFO decoding.
//
// The device is a single stateful resource. Nothing in this package locks;
// callers must serialize every call on a Dev.
package ism330dhcx

// WhoAmIValue is the fixed WHO_AM_I response.
const WhoAmIValue byte = 0x6B

// User bank.
const (
	RegFuncCfgAccess byte = 0x01 // reg_access[7:6], visible from every bank
	RegPinCtrl       byte = 0x02
	RegFIFOCtrl1     byte = 0x07 // wtm[7:0]
	RegFIFOCtrl2     byte = 0x08 // wtm[8] at bit 0
	RegFIFOCtrl3     byte = 0x09 // bdr_gy[7:4] bdr_xl[3:0]
	RegFIFOCtrl4     byte = 0x0A // odr_ts_batch[7:6] odr_t_batch[5:4] fifo_mode[2:0]
	RegCounterBDR1   byte = 0x0B
	RegCounterBDR2   byte = 0x0C
	RegInt1Ctrl      byte = 0x0D
	RegInt2Ctrl      byte = 0x0E
	RegWhoAmI        byte = 0x0F
	RegCtrl1XL       byte = 0x10 // odr_xl[7:4] fs_xl[3:2] lpf2_xl_en[1]
	RegCtrl2G        byte = 0x11 // odr_g[7:4] fs_g[3:2] fs_125[1] fs_4000[0]
	RegCtrl3C        byte = 0x12
	RegCtrl4C        byte = 0x13
	RegCtrl5C        byte = 0x14
	RegCtrl6C        byte = 0x15
	RegCtrl7G        byte = 0x16
	RegCtrl8XL       byte = 0x17
	RegCtrl9XL       byte = 0x18
	RegCtrl10C       byte = 0x19
	RegAllIntSrc     byte = 0x1A
	RegWakeUpSrc     byte = 0x1B
	RegTapSrc        byte = 0x1C
	RegD6DSrc        byte = 0x1D
	RegStatus        byte = 0x1E
	RegOutTempL      byte = 0x20
	RegOutXLG        byte = 0x22
	RegOutXLA        byte = 0x28

	RegEmbFuncStatusMainpage byte = 0x35
	RegFSMStatusAMainpage    byte = 0x36
	RegFSMStatusBMainpage    byte = 0x37
	RegMLCStatusMainpage     byte = 0x38
	RegStatusMasterMainpage  byte = 0x39

	RegFIFOStatus1 byte = 0x3A // diff_fifo[7:0]
	RegFIFOStatus2 byte = 0x3B // wtm_ia[7] ovr_ia[6] full_ia[5] bdr_ia[4] ovr_latched[3] diff_fifo[9:8]
	RegTimestamp0  byte = 0x40

	RegIntCfg0     byte = 0x56
	RegIntCfg1     byte = 0x58 // interrupts_enable[7]
	RegThs6D       byte = 0x59
	RegIntDur2     byte = 0x5A
	RegWakeUpThs   byte = 0x5B
	RegWakeUpDur   byte = 0x5C
	RegFreeFall    byte = 0x5D
	RegMD1Cfg      byte = 0x5E
	RegMD2Cfg      byte = 0x5F
	RegIntFreqFine byte = 0x63

	RegFIFODataOutTag byte = 0x78 // tag_sensor[7:3] tag_cnt[2:1] tag_parity[0]
	RegFIFODataOutXL  byte = 0x79 // X_L..Z_H, 6 bytes
)

// Embedded functions bank.
const (
	RegPageSel         byte = 0x02 // page_sel[7:4], bit 0 must stay 1
	RegEmbFuncEnA      byte = 0x04
	RegEmbFuncEnB      byte = 0x05 // mlc_en[4] fsm_en[0]
	RegPageAddress     byte = 0x08
	RegPageValue       byte = 0x09
	RegEmbFuncInt1     byte = 0x0A // int1_fsm_lc[7]
	RegFSMInt1A        byte = 0x0B
	RegFSMInt1B        byte = 0x0C
	RegMLCInt1         byte = 0x0D
	RegEmbFuncInt2     byte = 0x0E // int2_fsm_lc[7]
	RegFSMInt2A        byte = 0x0F
	RegFSMInt2B        byte = 0x10
	RegMLCInt2         byte = 0x11
	RegEmbFuncStatus   byte = 0x12
	RegFSMStatusA      byte = 0x13
	RegFSMStatusB      byte = 0x14
	RegMLCStatus       byte = 0x15
	RegPageRW          byte = 0x17 // emb_func_lir[7] page_rw[6:5]
	RegEmbFuncFIFOCfg  byte = 0x44
	RegFSMEnableA      byte = 0x46
	RegFSMEnableB      byte = 0x47
	RegFSMLongCounterL byte = 0x48
	RegFSMLongCounterH byte = 0x49
	RegFSMLongCntClear byte = 0x4A
	RegFSMOuts1        byte = 0x4C
	RegEmbFuncODRCfgB  byte = 0x5F // fsm_odr[4:3]
	RegEmbFuncODRCfgC  byte = 0x60 // mlc_odr[5:4]
	RegStepCounterL    byte = 0x62
	RegEmbFuncSrc      byte = 0x64
	RegEmbFuncInitA    byte = 0x66
	RegEmbFuncInitB    byte = 0x67 // mlc_init[4] fsm_init[0]
	RegMLC0Src         byte = 0x70
)

// Paged memory locations used by the advanced embedded features.
const (
	PageAddrMagSensitivityL uint16 = 0x00BA
	PageAddrMagOffX         uint16 = 0x00C0
	PageAddrMagSIXX         uint16 = 0x00C6
	PageAddrMagCfgA         uint16 = 0x00D4
	PageAddrMagCfgB         uint16 = 0x00D5
	PageAddrFSMLCTimeoutL   uint16 = 0x017A
	PageAddrFSMLCTimeoutH   uint16 = 0x017B
	PageAddrFSMPrograms     uint16 = 0x017C
	PageAddrFSMStartAddL    uint16 = 0x017E
	PageAddrFSMStartAddH    uint16 = 0x017F
	PageAddrMLCMagSens      uint16 = 0x01E8
)

// Bit layouts.
const (
	bankShift = 6
	bankMask  = 0xC0

	ctrl3BDU   = 0x40
	ctrl3IfInc = 0x04

	odrShift = 4
	odrMask  = 0xF0
	fsXLMask = 0x0C
	fsGMask  = 0x0F

	ctrl10TimestampEn = 0x20

	pageSelFixed = 0x01
	pageSelShift = 4

	pageRWMask  = 0x60
	pageRWRead  = 0x20
	pageRWWrite = 0x40

	embFSMEn = 0x01
	embMLCEn = 0x10

	fsmODRShift = 3
	fsmODRMask  = 0x18
	mlcODRShift = 4
	mlcODRMask  = 0x30

	intCfg1InterruptsEnable = 0x80

	mdEmbFunc      = 0x02
	embIntFSMLC    = 0x80
	fifoStatus2Hi  = 0x03
	fifoModeMask   = 0x07
	fifoTSMask     = 0xC0
	fifoTSShift    = 6
	fifoWtmHighBit = 0x01

	tagSensorShift = 3
	tagCntShift    = 1
	tagCntMask     = 0x03
	tagParityMask  = 0x01
)
