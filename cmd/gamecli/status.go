package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/gookit/color"
	"golang.org/x/crypto/ssh/terminal"
)

var colorOutput = terminal.IsTerminal(int(os.Stdout.Fd()))

type printer interface {
	Printf(format string, a ...interface{})
}

type plainPrinter struct{}

func (plainPrinter) Printf(format string, a ...interface{}) {
	fmt.Printf(format, a...)
}

func status(p printer, prefix, format string, a ...interface{}) {
	if !colorOutput {
		p = plainPrinter{}
	}
	p.Printf("%s %s\n", prefix, fmt.Sprintf(format, a...))
}

func statusOK(format string, a ...interface{}) {
	glog.Infof(format, a...)
	status(color.Green, "[ok]", format, a...)
}

func statusWarn(format string, a ...interface{}) {
	glog.Warningf(format, a...)
	status(color.Yellow, "[!!]", format, a...)
}

func statusError(format string, a ...interface{}) {
	glog.Errorf(format, a...)
	status(color.Red, "[EE]", format, a...)
}
