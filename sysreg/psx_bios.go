// This file is part of Arrêt.
//
// Arrêt is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arrêt is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arrêt.  If not, see <https://www.gnu.org/licenses/>.

package sysreg

import (
	"fmt"
	"strings"

	"github.com/arret/arret/debugif"
)

// biosFunc is one named entry of a PSX BIOS call table.
type biosFunc struct {
	fn     byte
	name   string
	nargs  int
}

// Register indices, matching the R3000A o32 calling convention layout
// used by arch/r3000a.go: a0-a3 at 4-7, t1 at 9.
const (
	regA0 = 4
	regA1 = 5
	regA2 = 6
	regA3 = 7
	regT1 = 9
)

// aTable is the PSX A-function table (call address 0xA0).
var aTable = []biosFunc{
	{0x00, "FileOpen", 2}, {0x01, "FileSeek", 3}, {0x02, "FileRead", 3},
	{0x03, "FileWrite", 3}, {0x04, "FileClose", 1}, {0x05, "FileIoctl", 3},
	{0x06, "exit", 1}, {0x07, "FileGetDeviceFlag", 1}, {0x08, "FileGetc", 1},
	{0x09, "FilePutc", 2}, {0x0A, "todigit", 1}, {0x0B, "atof", 1},
	{0x0C, "strtoul", 3}, {0x0D, "strtol", 3}, {0x0E, "abs", 1},
	{0x0F, "labs", 1}, {0x10, "atoi", 1}, {0x11, "atol", 1},
	{0x12, "atob", 2}, {0x13, "SaveState", 1}, {0x14, "RestoreState", 2},
	{0x15, "strcat", 2}, {0x16, "strncat", 3}, {0x17, "strcmp", 2},
	{0x18, "strncmp", 3}, {0x19, "strcpy", 2}, {0x1A, "strncpy", 3},
	{0x1B, "strlen", 1}, {0x1C, "index", 2}, {0x1D, "rindex", 2},
	{0x1E, "strchr", 2}, {0x1F, "strrchr", 2}, {0x20, "strpbrk", 2},
	{0x21, "strspn", 2}, {0x22, "strcspn", 2}, {0x23, "strtok", 2},
	{0x24, "strstr", 2}, {0x25, "toupper", 1}, {0x26, "tolower", 1},
	{0x27, "bcopy", 3}, {0x28, "bzero", 2}, {0x29, "bcmp", 3},
	{0x2A, "memcpy", 3}, {0x2B, "memset", 3}, {0x2C, "memmove", 3},
	{0x2D, "memcmp", 3}, {0x2E, "memchr", 3}, {0x2F, "rand", 0},
	{0x30, "srand", 1}, {0x31, "qsort", 4}, {0x32, "strtod", 2},
	{0x33, "malloc", 1}, {0x34, "free", 1}, {0x35, "lsearch", 4},
	{0x36, "bsearch", 4}, {0x37, "calloc", 2}, {0x38, "realloc", 2},
	{0x39, "InitHeap", 2}, {0x3A, "SystemErrorExit", 1}, {0x3B, "std_in_getchar", 0},
	{0x3C, "std_out_putchar", 1}, {0x3D, "std_in_gets", 1}, {0x3E, "std_out_puts", 1},
	{0x3F, "printf", 1}, {0x40, "SystemErrorUnresolvedException", 0},
	{0x41, "LoadExeHeader", 2}, {0x42, "LoadExeFile", 2}, {0x43, "DoExecute", 3},
	{0x44, "FlushCache", 0}, {0x45, "init_a0_b0_c0_vectors", 0}, {0x46, "GPU_dw", 4},
	{0x47, "gpu_send_dma", 4}, {0x48, "SendGP1Command", 1}, {0x49, "GPU_cw", 1},
	{0x4A, "GPU_cwp", 2}, {0x4B, "send_gpu_linked_list", 1}, {0x4C, "gpu_abort_dma", 0},
	{0x4D, "GetGPUStatus", 0}, {0x4E, "gpu_sync", 0}, {0x51, "LoadAndExecute", 3},
	{0x54, "CdInit", 0}, {0x55, "_bu_init", 0}, {0x56, "CdRemove", 0},
	{0x5B, "dev_tty_init", 0}, {0x5C, "dev_tty_open", 3}, {0x5D, "dev_tty_in_out", 2},
	{0x5E, "dev_tty_ioctl", 3}, {0x5F, "dev_cd_open", 3}, {0x60, "dev_cd_read", 3},
	{0x61, "dev_cd_close", 1}, {0x62, "dev_cd_firstfile", 3}, {0x63, "dev_cd_nextfile", 2},
	{0x64, "dev_cd_chdir", 2}, {0x65, "dev_card_open", 3}, {0x66, "dev_card_read", 3},
	{0x67, "dev_card_write", 3}, {0x68, "dev_card_close", 1}, {0x69, "dev_card_firstfile", 3},
	{0x6A, "dev_card_nextfile", 2}, {0x6B, "dev_card_erase", 2}, {0x6C, "dev_card_undelete", 2},
	{0x6D, "dev_card_format", 1}, {0x6E, "dev_card_rename", 4}, {0x70, "_bu_init", 0},
	{0x71, "CdInit", 0}, {0x72, "CdRemove", 0}, {0x78, "CdAsyncSeekL", 1},
	{0x7C, "CdAsyncGetStatus", 1}, {0x7E, "CdAsyncReadSector", 3}, {0x81, "CdAsyncSetMode", 1},
	{0x90, "CdromIoIrqFunc1", 0}, {0x91, "CdromDmaIrqFunc1", 0}, {0x92, "CdromIoIrqFunc2", 0},
	{0x93, "CdromDmaIrqFunc2", 0}, {0x94, "CdromGetInt5errCode", 2}, {0x95, "CdInitSubFunc", 0},
	{0x96, "AddCDROMDevice", 0}, {0x97, "AddMemCardDevice", 0}, {0x98, "AddDuartTtyDevice", 0},
	{0x99, "AddDummyTtyDevice", 0}, {0x9C, "SetConf", 3}, {0x9D, "GetConf", 3},
	{0x9E, "SetCdromIrqAutoAbort", 2}, {0x9F, "SetMemSize", 1}, {0xA0, "WarmBoot", 0},
	{0xA1, "SystemErrorBootOrDiskFailure", 2}, {0xA2, "EnqueueCdIntr", 0}, {0xA3, "DequeueCdIntr", 0},
	{0xA4, "CdGetLbn", 1}, {0xA5, "CdReadSector", 3}, {0xA6, "CdGetStatus", 0},
	{0xAB, "_card_info", 1}, {0xAC, "_card_async_load_directory", 1}, {0xAD, "set_card_auto_format", 1},
	{0xAF, "card_write_test", 1}, {0xB2, "ioabort_raw", 1}, {0xB4, "GetSystemInfo", 1},
}

// bTable is the PSX B-function table (call address 0xB0).
var bTable = []biosFunc{
	{0x00, "alloc_kernel_memory", 1}, {0x01, "free_kernel_memory", 1}, {0x02, "init_timer", 3},
	{0x03, "get_timer", 1}, {0x04, "enable_timer_irq", 1}, {0x05, "disable_timer_irq", 1},
	{0x06, "restart_timer", 1}, {0x07, "DeliverEvent", 2}, {0x08, "OpenEvent", 4},
	{0x09, "CloseEvent", 1}, {0x0A, "WaitEvent", 1}, {0x0B, "TestEvent", 1},
	{0x0C, "EnableEvent", 1}, {0x0D, "DisableEvent", 1}, {0x0E, "OpenThread", 3},
	{0x0F, "CloseThread", 1}, {0x10, "ChangeThread", 1}, {0x12, "InitPad", 4},
	{0x13, "StartPad", 0}, {0x14, "StopPad", 0}, {0x15, "OutdatedPadInitAndStart", 4},
	{0x16, "OutdatedPadGetButtons", 0}, {0x17, "ReturnFromException", 0}, {0x18, "SetDefaultExitFromException", 0},
	{0x19, "SetCustomExitFromException", 1}, {0x20, "UnDeliverEvent", 2}, {0x32, "FileOpen", 2},
	{0x33, "FileSeek", 3}, {0x34, "FileRead", 3}, {0x35, "FileWrite", 3},
	{0x36, "FileClose", 1}, {0x37, "FileIoctl", 3}, {0x38, "exit", 1},
	{0x39, "FileGetDeviceFlag", 1}, {0x3A, "FileGetc", 1}, {0x3B, "FilePutc", 2},
	{0x3C, "std_in_getchar", 0}, {0x3D, "std_out_putchar", 1}, {0x3E, "std_in_gets", 1},
	{0x3F, "std_out_puts", 1}, {0x40, "chdir", 1}, {0x41, "FormatDevice", 1},
	{0x42, "firstfile", 2}, {0x43, "nextfile", 1}, {0x44, "FileRename", 2},
	{0x45, "FileDelete", 1}, {0x46, "FileUndelete", 1}, {0x47, "AddDevice", 1},
	{0x48, "RemoveDevice", 1}, {0x49, "PrintInstalledDevices", 0}, {0x4A, "InitCard", 1},
	{0x4B, "StartCard", 0}, {0x4C, "StopCard", 0}, {0x4D, "_card_info_subfunc", 1},
	{0x4E, "write_card_sector", 3}, {0x4F, "read_card_sector", 3}, {0x50, "allow_new_card", 0},
	{0x51, "Krom2RawAdd", 1}, {0x53, "Krom2Offset", 1}, {0x54, "GetLastError", 0},
	{0x55, "GetLastFileError", 1}, {0x56, "GetC0Table", 0}, {0x57, "GetB0Table", 0},
	{0x58, "get_bu_callback_port", 0}, {0x59, "testdevice", 1}, {0x5B, "ChangeClearPad", 1},
	{0x5C, "get_card_status", 1}, {0x5D, "wait_card_status", 1},
}

// cTable is the PSX C-function table (call address 0xC0).
var cTable = []biosFunc{
	{0x00, "EnqueueTimerAndVblankIrqs", 1}, {0x01, "EnqueueSyscallHandler", 1}, {0x02, "SysEnqIntRP", 2},
	{0x03, "SysDeqIntRP", 2}, {0x04, "get_free_EvCB_slot", 0}, {0x05, "get_free_TCB_slot", 0},
	{0x06, "ExceptionHandler", 0}, {0x07, "InstallExceptionHandlers", 0}, {0x08, "SysInitMemory", 2},
	{0x09, "SysInitKernelVariables", 0}, {0x0A, "ChangeClearRCnt", 2}, {0x0C, "InitDefInt", 1},
	{0x0D, "SetIrqAutoAck", 2}, {0x12, "InstallDevices", 1}, {0x13, "FlushStdInOutPut", 0},
	{0x15, "tty_cdevinput", 2}, {0x16, "tty_cdevscan", 0}, {0x17, "tty_circgetc", 1},
	{0x18, "tty_circputc", 2}, {0x19, "ioabort", 2}, {0x1A, "set_card_find_mode", 1},
	{0x1B, "KernelRedirect", 1}, {0x1C, "AdjustA0Table", 0}, {0x1D, "get_card_find_mode", 0},
}

func lookupBios(table []biosFunc, fn byte) *biosFunc {
	for i := range table {
		if table[i].fn == fn {
			return &table[i]
		}
	}
	return nil
}

// formatBiosCall renders one PSX BIOS call as "A3F: printf(4, ...)",
// falling back to a raw-argument dump for unrecognized function numbers.
func formatBiosCall(letter byte, fn byte, cpu debugif.CPU) string {
	var table []biosFunc
	switch letter {
	case 'A':
		table = aTable
	case 'B':
		table = bTable
	case 'C':
		table = cTable
	}

	args := [4]uint32{
		uint32(cpu.GetRegister(regA0)),
		uint32(cpu.GetRegister(regA1)),
		uint32(cpu.GetRegister(regA2)),
		uint32(cpu.GetRegister(regA3)),
	}

	bf := lookupBios(table, fn)
	if bf == nil {
		return fmt.Sprintf("%c%02X(%X, %X, %X, %X)", letter, fn, args[0], args[1], args[2], args[3])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%c%02X: %s(", letter, fn, bf.name)
	for i := 0; i < bf.nargs && i < 4; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%X", args[i])
	}
	if letter == 'A' && fn == 0x3F {
		b.WriteString(", ...")
	}
	b.WriteByte(')')
	return b.String()
}

// biosTraceSession subscribes to execution at the three BIOS call vectors
// on the primary CPU and logs formatted call lines.
type biosTraceSession struct {
	cpu  debugif.CPU
	subs [3]debugif.SubscriptionID
}

func startBiosTrace(core debugif.Core, log func(string)) (TraceSession, error) {
	var cpu debugif.CPU
	for _, c := range core.System().CPUs() {
		if c.IsPrimary() {
			cpu = c
			break
		}
	}
	if cpu == nil {
		return nil, fmt.Errorf("sysreg: no primary CPU for BIOS trace")
	}

	s := &biosTraceSession{cpu: cpu}
	addrs := [3]struct {
		addr   uint64
		letter byte
	}{{0xA0, 'A'}, {0xB0, 'B'}, {0xC0, 'C'}}

	for i, a := range addrs {
		letter := a.letter
		sub := debugif.Subscription{
			Kind:  debugif.SubExecution,
			CPU:   cpu,
			Begin: a.addr,
			End:   a.addr,
			Step:  debugif.StepPlain,
		}
		s.subs[i] = core.Subscribe(sub, func(sub debugif.SubscriptionID, event debugif.Event) bool {
			if event.Type != debugif.EventExecution {
				return false
			}
			fn := byte(s.cpu.GetRegister(regT1))
			log(formatBiosCall(letter, fn, s.cpu))
			return false
		})
	}
	return s, nil
}

func (s *biosTraceSession) Stop(core debugif.Core) {
	for _, id := range s.subs {
		core.Unsubscribe(id)
	}
}
