package channel

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/feature"
	"github.com/lightningnetwork/lnchannel/fn"
	"github.com/lightningnetwork/lnchannel/lnwire"
	"github.com/lightningnetwork/lnchannel/shachain"
)

// Process starts the channel as funder or fundee.
func (s *WaitForInit) Process(event Event) (ChannelState, []Action) {
	switch e := event.(type) {
	case *EventInitFundee:
		next := &WaitForOpenChannel{
			stateCommon:        s.stateCommon,
			TemporaryChannelID: e.TemporaryChannelID,
			LocalParams:        e.LocalParams,
			RemoteInit:         e.RemoteInit,
		}
		return next, nil

	case *EventInitFunder:
		open, err := s.makeOpenChannel(e.Params)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := &WaitForAcceptChannel{
			stateCommon: s.stateCommon,
			Init:        e.Params,
			LastSent:    open,
		}
		return next, []Action{&ActionSendMessage{Msg: open}}

	default:
		return unhandled(s, event)
	}
}

// makeOpenChannel assembles the OpenChannel message from the funder
// parameters and our derived basepoints.
func (s *WaitForInit) makeOpenChannel(p InitFunderParams) (
	*lnwire.OpenChannel, error) {

	lp := p.LocalParams
	path := s.keyMgr.ChannelKeyPath(
		lp.FundingKeyIndex, p.ChannelVersion.HasStaticRemoteKey(),
	)

	fundingKey, err := s.keyMgr.FundingPublicKey(lp.FundingKeyIndex)
	if err != nil {
		return nil, err
	}
	revocation, err := s.keyMgr.RevocationBasePoint(path)
	if err != nil {
		return nil, err
	}
	payment, err := s.keyMgr.PaymentBasePoint(path)
	if err != nil {
		return nil, err
	}
	delayed, err := s.keyMgr.DelayedPaymentBasePoint(path)
	if err != nil {
		return nil, err
	}
	htlc, err := s.keyMgr.HtlcBasePoint(path)
	if err != nil {
		return nil, err
	}

	// The first pair of commitment points exchanged during opening uses
	// index 0.
	firstPoint, err := s.keyMgr.CommitmentPoint(path, 0)
	if err != nil {
		return nil, err
	}

	return &lnwire.OpenChannel{
		ChainHash:            s.StaticParams.NodeParams.ChainHash,
		PendingChannelID:     p.TemporaryChannelID,
		FundingAmount:        p.FundingAmount,
		PushAmount:           p.PushAmount,
		DustLimit:            lp.DustLimit,
		MaxValueInFlight:     lp.MaxHtlcValueInFlight,
		ChannelReserve:       lp.ChannelReserve,
		HtlcMinimum:          lp.HtlcMinimum,
		FeePerKiloWeight:     uint32(p.InitialFeeRatePerKw),
		CsvDelay:             lp.ToSelfDelay,
		MaxAcceptedHTLCs:     lp.MaxAcceptedHtlcs,
		FundingKey:           fundingKey,
		RevocationPoint:      revocation,
		PaymentPoint:         payment,
		DelayedPaymentPoint:  delayed,
		HtlcPoint:            htlc,
		FirstCommitmentPoint: firstPoint,
		ChannelFlags:         p.ChannelFlags,
	}, nil
}

// Process validates the funder's OpenChannel and answers with
// AcceptChannel.
func (s *WaitForOpenChannel) Process(event Event) (ChannelState, []Action) {
	msg, ok := event.(*EventMessageReceived)
	if !ok {
		return unhandled(s, event)
	}
	open, ok := msg.Msg.(*lnwire.OpenChannel)
	if !ok {
		return unhandled(s, event)
	}

	if err := s.validateOpenChannel(open); err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	// Settle on the channel version from the negotiated feature sets.
	version := pickChannelVersion(
		orEmptyVector(s.LocalParams.Features),
		remoteFeatures(s.RemoteInit),
	)

	accept, err := s.makeAcceptChannel(open, version)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	remoteParams := RemoteParams{
		DustLimit:               open.DustLimit,
		MaxHtlcValueInFlight:    open.MaxValueInFlight,
		ChannelReserve:          open.ChannelReserve,
		HtlcMinimum:             open.HtlcMinimum,
		ToSelfDelay:             open.CsvDelay,
		MaxAcceptedHtlcs:        open.MaxAcceptedHTLCs,
		FundingKey:              open.FundingKey,
		RevocationBasePoint:     open.RevocationPoint,
		PaymentBasePoint:        open.PaymentPoint,
		DelayedPaymentBasePoint: open.DelayedPaymentPoint,
		HtlcBasePoint:           open.HtlcPoint,
		Features:                remoteFeatures(s.RemoteInit),
	}

	next := &WaitForFundingCreated{
		stateCommon:        s.stateCommon,
		TemporaryChannelID: open.PendingChannelID,
		LocalParams:        s.LocalParams,
		RemoteParams:       remoteParams,
		FundingAmount:      open.FundingAmount,
		PushAmount:         open.PushAmount,
		InitialFeeRatePerKw: chainfee.SatPerKWeight(
			open.FeePerKiloWeight,
		),
		RemoteFirstPerCommitmentPoint: open.FirstCommitmentPoint,
		ChannelFlags:                  open.ChannelFlags,
		ChannelVersion:                version,
		LastSent:                      accept,
	}

	return next, []Action{&ActionSendMessage{Msg: accept}}
}

// remoteFeatures wraps the feature bits of an Init message into a vector.
func remoteFeatures(init *lnwire.Init) *lnwire.FeatureVector {
	if init == nil || init.Features == nil {
		return lnwire.EmptyFeatureVector()
	}
	return lnwire.NewFeatureVector(init.Features, lnwire.Features)
}

// validateOpenChannel enforces our policy on the funder's proposal.
func (s *WaitForOpenChannel) validateOpenChannel(
	open *lnwire.OpenChannel) error {

	nodeParams := s.StaticParams.NodeParams

	if open.ChainHash != nodeParams.ChainHash {
		return ErrChainMismatch()
	}

	if open.FundingAmount == 0 {
		return ErrZeroCapacity()
	}

	wumbo := feature.CanUseFeature(
		orEmptyVector(s.LocalParams.Features),
		remoteFeatures(s.RemoteInit),
		lnwire.WumboChannelsOptional,
	)
	if open.FundingAmount > MaxFundingAmount && !wumbo {
		return ErrChanTooLarge(open.FundingAmount, MaxFundingAmount)
	}

	if open.DustLimit < MinDustLimit {
		return ErrDustLimitTooSmall(
			lnwire.MsgOpenChannel, open.DustLimit, MinDustLimit,
		)
	}

	if open.CsvDelay > MaxToSelfDelay {
		return ErrCsvDelayTooLarge(
			lnwire.MsgOpenChannel, open.CsvDelay, MaxToSelfDelay,
		)
	}

	if open.MaxAcceptedHTLCs > MaxAcceptedHtlcs {
		return ErrMaxHtlcNumTooLarge(
			lnwire.MsgOpenChannel, open.MaxAcceptedHTLCs,
			MaxAcceptedHtlcs,
		)
	}

	if open.ChannelReserve > open.FundingAmount/100*5 {
		return ErrChanReserveTooLarge(
			lnwire.MsgOpenChannel, open.ChannelReserve,
			open.FundingAmount/100*5,
		)
	}

	if chainfee.SatPerKWeight(open.FeePerKiloWeight) <
		chainfee.FeePerKwFloor {

		return ErrFeeRateOutOfBounds{
			proposed: open.FeePerKiloWeight,
			expected: uint32(chainfee.FeePerKwFloor),
		}
	}

	return nil
}

// makeAcceptChannel assembles our AcceptChannel answer.
func (s *WaitForOpenChannel) makeAcceptChannel(open *lnwire.OpenChannel,
	version ChannelVersion) (*lnwire.AcceptChannel, error) {

	lp := s.LocalParams
	path := s.keyMgr.ChannelKeyPath(
		lp.FundingKeyIndex, version.HasStaticRemoteKey(),
	)

	fundingKey, err := s.keyMgr.FundingPublicKey(lp.FundingKeyIndex)
	if err != nil {
		return nil, err
	}
	revocation, err := s.keyMgr.RevocationBasePoint(path)
	if err != nil {
		return nil, err
	}
	payment, err := s.keyMgr.PaymentBasePoint(path)
	if err != nil {
		return nil, err
	}
	delayed, err := s.keyMgr.DelayedPaymentBasePoint(path)
	if err != nil {
		return nil, err
	}
	htlc, err := s.keyMgr.HtlcBasePoint(path)
	if err != nil {
		return nil, err
	}
	firstPoint, err := s.keyMgr.CommitmentPoint(path, 0)
	if err != nil {
		return nil, err
	}

	minDepth := s.StaticParams.NodeParams.MinDepthBlocks
	if version.HasZeroReserve() {
		minDepth = 0
	}

	return &lnwire.AcceptChannel{
		PendingChannelID:     open.PendingChannelID,
		DustLimit:            lp.DustLimit,
		MaxValueInFlight:     lp.MaxHtlcValueInFlight,
		ChannelReserve:       lp.ChannelReserve,
		HtlcMinimum:          lp.HtlcMinimum,
		MinAcceptDepth:       minDepth,
		CsvDelay:             lp.ToSelfDelay,
		MaxAcceptedHTLCs:     lp.MaxAcceptedHtlcs,
		FundingKey:           fundingKey,
		RevocationPoint:      revocation,
		PaymentPoint:         payment,
		DelayedPaymentPoint:  delayed,
		HtlcPoint:            htlc,
		FirstCommitmentPoint: firstPoint,
	}, nil
}

// Process validates the fundee's AcceptChannel and asks the wallet for a
// funding transaction.
func (s *WaitForAcceptChannel) Process(event Event) (ChannelState, []Action) {
	msg, ok := event.(*EventMessageReceived)
	if !ok {
		return unhandled(s, event)
	}
	accept, ok := msg.Msg.(*lnwire.AcceptChannel)
	if !ok {
		return unhandled(s, event)
	}

	if err := s.validateAcceptChannel(accept); err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	remoteParams := RemoteParams{
		DustLimit:               accept.DustLimit,
		MaxHtlcValueInFlight:    accept.MaxValueInFlight,
		ChannelReserve:          accept.ChannelReserve,
		HtlcMinimum:             accept.HtlcMinimum,
		ToSelfDelay:             accept.CsvDelay,
		MaxAcceptedHtlcs:        accept.MaxAcceptedHTLCs,
		FundingKey:              accept.FundingKey,
		RevocationBasePoint:     accept.RevocationPoint,
		PaymentBasePoint:        accept.PaymentPoint,
		DelayedPaymentBasePoint: accept.DelayedPaymentPoint,
		HtlcBasePoint:           accept.HtlcPoint,
		Features:                remoteFeatures(s.Init.RemoteInit),
	}

	pkScript, err := s.fundingScript(accept.FundingKey)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	next := &WaitForFundingInternal{
		stateCommon:                   s.stateCommon,
		TemporaryChannelID:            s.Init.TemporaryChannelID,
		LocalParams:                   s.Init.LocalParams,
		RemoteParams:                  remoteParams,
		FundingAmount:                 s.Init.FundingAmount,
		PushAmount:                    s.Init.PushAmount,
		InitialFeeRatePerKw:           s.Init.InitialFeeRatePerKw,
		RemoteFirstPerCommitmentPoint: accept.FirstCommitmentPoint,
		MinDepth:                      accept.MinAcceptDepth,
		ChannelFlags:                  s.Init.ChannelFlags,
		ChannelVersion:                s.Init.ChannelVersion,
		LastSent:                      s.LastSent,
	}

	makeFunding := &ActionMakeFundingTx{
		PkScript:     pkScript,
		Amount:       s.Init.FundingAmount,
		FeeRatePerKw: s.Init.FundingTxFeeRatePerKw,
	}

	return next, []Action{makeFunding}
}

// fundingScript builds the p2wsh output script of the 2-of-2 funding
// output.
func (s *WaitForAcceptChannel) fundingScript(
	remoteFundingKey *btcec.PublicKey) ([]byte, error) {

	localFundingKey, err := s.keyMgr.FundingPublicKey(
		s.Init.LocalParams.FundingKeyIndex,
	)
	if err != nil {
		return nil, err
	}

	witnessScript, err := GenMultiSigScript(
		localFundingKey.SerializeCompressed(),
		remoteFundingKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, err
	}

	return witnessScriptHash(witnessScript)
}

// validateAcceptChannel enforces our policy on the fundee's answer.
func (s *WaitForAcceptChannel) validateAcceptChannel(
	accept *lnwire.AcceptChannel) error {

	if accept.DustLimit < MinDustLimit {
		return ErrDustLimitTooSmall(
			lnwire.MsgAcceptChannel, accept.DustLimit,
			MinDustLimit,
		)
	}

	if accept.CsvDelay > MaxToSelfDelay {
		return ErrCsvDelayTooLarge(
			lnwire.MsgAcceptChannel, accept.CsvDelay,
			MaxToSelfDelay,
		)
	}

	if accept.MaxAcceptedHTLCs > MaxAcceptedHtlcs {
		return ErrMaxHtlcNumTooLarge(
			lnwire.MsgAcceptChannel, accept.MaxAcceptedHTLCs,
			MaxAcceptedHtlcs,
		)
	}

	if accept.MinAcceptDepth > AnnouncementsMinConf*2 {
		return ErrNumConfsTooLarge(
			accept.MinAcceptDepth, AnnouncementsMinConf*2,
		)
	}

	maxReserve := s.Init.FundingAmount / 100 * 5
	if accept.ChannelReserve > maxReserve {
		return ErrChanReserveTooLarge(
			lnwire.MsgAcceptChannel, accept.ChannelReserve,
			maxReserve,
		)
	}

	maxMinHtlc := lnwire.NewMSatFromSatoshis(s.Init.FundingAmount / 100)
	if accept.HtlcMinimum > maxMinHtlc {
		return ErrMinHtlcTooLarge(
			lnwire.MsgAcceptChannel, accept.HtlcMinimum,
			maxMinHtlc,
		)
	}

	return nil
}

// firstCommitTxs builds the initial commitment transactions of both sides
// from the funding outpoint and the opening balances.
func firstCommitTxs(s stateCommon, localParams LocalParams,
	remoteParams RemoteParams, version ChannelVersion,
	fundingAmount btcutil.Amount, pushAmount lnwire.MilliSatoshi,
	feeRate chainfee.SatPerKWeight, fundingInput FundingInput,
	remoteFirstPoint *btcec.PublicKey) (CommitmentSpec, *commitmentTx,
	CommitmentSpec, *commitmentTx, error) {

	fundingMsat := lnwire.NewMSatFromSatoshis(fundingAmount)

	var localSpec, remoteSpec CommitmentSpec
	if localParams.IsFunder {
		localSpec = CommitmentSpec{
			FeeRatePerKw: feeRate,
			ToLocal:      fundingMsat - pushAmount,
			ToRemote:     pushAmount,
		}
	} else {
		localSpec = CommitmentSpec{
			FeeRatePerKw: feeRate,
			ToLocal:      pushAmount,
			ToRemote:     fundingMsat - pushAmount,
		}
	}
	remoteSpec = localSpec.mirror()

	// Assemble a throwaway Commitments value to reuse the key derivation
	// helpers.
	scaffold := Commitments{
		ChannelVersion: version,
		LocalParams:    localParams,
		RemoteParams:   remoteParams,
		CommitInput:    fundingInput,
	}

	path := scaffold.channelKeyPath(s.keyMgr)
	localFirstPoint, err := s.keyMgr.CommitmentPoint(path, 0)
	if err != nil {
		return CommitmentSpec{}, nil, CommitmentSpec{}, nil, err
	}

	localPoints, err := scaffold.localBasePoints(s.keyMgr)
	if err != nil {
		return CommitmentSpec{}, nil, CommitmentSpec{}, nil, err
	}

	localKeys := deriveCommitmentKeys(
		localFirstPoint, localPoints, scaffold.remoteBasePoints(),
		version.HasStaticRemoteKey(),
	)
	localCommitTx, err := buildCommitmentTx(
		fundingInput, localSpec, localKeys, localParams.DustLimit,
		remoteParams.ToSelfDelay, localParams.IsFunder,
	)
	if err != nil {
		return CommitmentSpec{}, nil, CommitmentSpec{}, nil, err
	}

	remoteKeys := deriveCommitmentKeys(
		remoteFirstPoint, scaffold.remoteBasePoints(), localPoints,
		version.HasStaticRemoteKey(),
	)
	remoteCommitTx, err := buildCommitmentTx(
		fundingInput, remoteSpec, remoteKeys, remoteParams.DustLimit,
		localParams.ToSelfDelay, !localParams.IsFunder,
	)
	if err != nil {
		return CommitmentSpec{}, nil, CommitmentSpec{}, nil, err
	}

	return localSpec, localCommitTx, remoteSpec, remoteCommitTx, nil
}

// makeFundingInput assembles the funding outpoint metadata both commitments
// spend.
func makeFundingInput(s stateCommon, localFundingKeyIndex uint32,
	remoteFundingKey *btcec.PublicKey, outPoint wire.OutPoint,
	fundingAmount btcutil.Amount) (FundingInput, error) {

	localFundingKey, err := s.keyMgr.FundingPublicKey(localFundingKeyIndex)
	if err != nil {
		return FundingInput{}, err
	}

	witnessScript, err := GenMultiSigScript(
		localFundingKey.SerializeCompressed(),
		remoteFundingKey.SerializeCompressed(),
	)
	if err != nil {
		return FundingInput{}, err
	}

	pkScript, err := witnessScriptHash(witnessScript)
	if err != nil {
		return FundingInput{}, err
	}

	return FundingInput{
		OutPoint: outPoint,
		TxOut: wire.TxOut{
			Value:    int64(fundingAmount),
			PkScript: pkScript,
		},
		WitnessScript: witnessScript,
	}, nil
}

// Process consumes the wallet's funding transaction, signs the remote's
// first commitment and sends FundingCreated.
func (s *WaitForFundingInternal) Process(event Event) (ChannelState,
	[]Action) {

	resp, ok := event.(*EventMakeFundingTxResponse)
	if !ok {
		return unhandled(s, event)
	}

	outPoint := wire.OutPoint{
		Hash:  resp.FundingTx.TxHash(),
		Index: resp.FundingTxOutputIndex,
	}

	fundingInput, err := makeFundingInput(
		s.stateCommon, s.LocalParams.FundingKeyIndex,
		s.RemoteParams.FundingKey, outPoint, s.FundingAmount,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	// The wallet must have paid to the negotiated funding script.
	if int(resp.FundingTxOutputIndex) >= len(resp.FundingTx.TxOut) ||
		!bytes.Equal(
			resp.FundingTx.TxOut[resp.FundingTxOutputIndex].PkScript,
			fundingInput.TxOut.PkScript,
		) {

		return s, []Action{&ActionHandleError{
			Err: &ErrFundingOutputMismatch{
				OutputIndex: resp.FundingTxOutputIndex,
			},
		}}
	}

	localSpec, localCommitTx, remoteSpec, remoteCommitTx, err :=
		firstCommitTxs(
			s.stateCommon, s.LocalParams, s.RemoteParams,
			s.ChannelVersion, s.FundingAmount, s.PushAmount,
			s.InitialFeeRatePerKw, fundingInput,
			s.RemoteFirstPerCommitmentPoint,
		)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	scaffold := Commitments{
		ChannelVersion: s.ChannelVersion,
		LocalParams:    s.LocalParams,
		RemoteParams:   s.RemoteParams,
		CommitInput:    fundingInput,
	}
	remoteSig, err := scaffold.signCommitTx(s.keyMgr, remoteCommitTx.tx)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	channelID := lnwire.NewChanIDFromOutPoint(outPoint)

	fundingCreated := &lnwire.FundingCreated{
		PendingChannelID: s.TemporaryChannelID,
		FundingPoint:     outPoint,
		CommitSig:        remoteSig,
	}

	next := &WaitForFundingSigned{
		stateCommon:   s.stateCommon,
		ChannelID:     channelID,
		LocalParams:   s.LocalParams,
		RemoteParams:  s.RemoteParams,
		FundingTx:     resp.FundingTx,
		FundingTxFee:  resp.Fee,
		CommitInput:   fundingInput,
		LocalSpec:     localSpec,
		LocalCommitTx: localCommitTx.tx,
		RemoteCommit: RemoteCommit{
			Index: 0,
			Spec:  remoteSpec,
			Txid:  remoteCommitTx.tx.TxHash(),

			RemotePerCommitmentPoint: s.RemoteFirstPerCommitmentPoint,
		},
		MinDepth:       s.MinDepth,
		ChannelFlags:   s.ChannelFlags,
		ChannelVersion: s.ChannelVersion,
		LastSent:       fundingCreated,
	}

	actions := []Action{
		&ActionChannelIdAssigned{
			TemporaryChannelID: s.TemporaryChannelID,
			ChannelID:          channelID,
		},
		&ActionSendMessage{Msg: fundingCreated},
	}

	return next, actions
}

// Process validates the funder's FundingCreated, signs back the funder's
// first commitment and starts watching the chain.
func (s *WaitForFundingCreated) Process(event Event) (ChannelState,
	[]Action) {

	msg, ok := event.(*EventMessageReceived)
	if !ok {
		return unhandled(s, event)
	}
	created, ok := msg.Msg.(*lnwire.FundingCreated)
	if !ok {
		return unhandled(s, event)
	}

	fundingInput, err := makeFundingInput(
		s.stateCommon, s.LocalParams.FundingKeyIndex,
		s.RemoteParams.FundingKey, created.FundingPoint,
		s.FundingAmount,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	localSpec, localCommitTx, remoteSpec, remoteCommitTx, err :=
		firstCommitTxs(
			s.stateCommon, s.LocalParams, s.RemoteParams,
			s.ChannelVersion, s.FundingAmount, s.PushAmount,
			s.InitialFeeRatePerKw, fundingInput,
			s.RemoteFirstPerCommitmentPoint,
		)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	err = verifyCommitSig(
		localCommitTx.tx, fundingInput, s.RemoteParams.FundingKey,
		created.CommitSig,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{
			Err: &ErrInvalidCommitmentSignature{CommitIndex: 0},
		}}
	}

	scaffold := Commitments{
		ChannelVersion: s.ChannelVersion,
		LocalParams:    s.LocalParams,
		RemoteParams:   s.RemoteParams,
		CommitInput:    fundingInput,
	}
	remoteSig, err := scaffold.signCommitTx(s.keyMgr, remoteCommitTx.tx)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	publishable, err := scaffold.assemblePublishableTxs(
		s.keyMgr, localCommitTx, created.CommitSig,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	channelID := lnwire.NewChanIDFromOutPoint(created.FundingPoint)

	fundingSigned := &lnwire.FundingSigned{
		ChanID:    channelID,
		CommitSig: remoteSig,
	}

	commitments := Commitments{
		ChannelVersion: s.ChannelVersion,
		LocalParams:    s.LocalParams,
		RemoteParams:   s.RemoteParams,
		ChannelFlags:   s.ChannelFlags,
		ChannelID:      channelID,
		LocalCommit: LocalCommit{
			Index:          0,
			Spec:           localSpec,
			PublishableTxs: publishable,
		},
		RemoteCommit: RemoteCommit{
			Index: 0,
			Spec:  remoteSpec,
			Txid:  remoteCommitTx.tx.TxHash(),

			RemotePerCommitmentPoint: s.RemoteFirstPerCommitmentPoint,
		},
		// Until the remote's FundingLocked delivers the real next
		// point, hold its first point as a placeholder. It is never
		// read before being replaced.
		RemoteNextCommitInfo: fn.NewRight[WaitingForRevocation](
			s.RemoteFirstPerCommitmentPoint,
		),
		CommitInput:                fundingInput,
		RemotePerCommitmentSecrets: *shachain.NewRevocationStore(),
		OriginChannels: make(
			map[uint64]lnwire.ShortChannelID,
		),
	}

	minDepth := s.StaticParams.NodeParams.MinDepthBlocks
	if s.ChannelVersion.HasZeroReserve() {
		minDepth = 0
	}

	next := &WaitForFundingConfirmed{
		stateCommon:  s.stateCommon,
		Commitments:  commitments,
		FundingTx:    nil,
		WaitingSince: s.clk.Now().Unix(),
		MinDepth:     minDepth,
		LastSent: fn.NewRight[*lnwire.FundingCreated](
			fundingSigned,
		),
	}

	actions := []Action{
		&ActionSendWatch{Watch: &WatchSpent{
			OutPoint: created.FundingPoint,
			PkScript: fundingInput.TxOut.PkScript,
		}},
		&ActionSendWatch{Watch: &WatchConfirmed{
			Txid:     created.FundingPoint.Hash,
			PkScript: fundingInput.TxOut.PkScript,
			MinDepth: minDepth,
		}},
		&ActionSendMessage{Msg: fundingSigned},
		&ActionChannelIdSwitched{
			OldChannelID: s.TemporaryChannelID,
			NewChannelID: channelID,
		},
		&ActionStoreState{State: next},
	}

	return next, actions
}

// Process validates the fundee's FundingSigned and broadcasts the funding
// transaction.
func (s *WaitForFundingSigned) Process(event Event) (ChannelState, []Action) {
	msg, ok := event.(*EventMessageReceived)
	if !ok {
		return unhandled(s, event)
	}
	signed, ok := msg.Msg.(*lnwire.FundingSigned)
	if !ok {
		return unhandled(s, event)
	}

	err := verifyCommitSig(
		s.LocalCommitTx, s.CommitInput, s.RemoteParams.FundingKey,
		signed.CommitSig,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{
			Err: &ErrInvalidCommitmentSignature{CommitIndex: 0},
		}}
	}

	scaffold := Commitments{
		ChannelVersion: s.ChannelVersion,
		LocalParams:    s.LocalParams,
		RemoteParams:   s.RemoteParams,
		CommitInput:    s.CommitInput,
	}
	publishable, err := scaffold.assemblePublishableTxs(
		s.keyMgr, &commitmentTx{tx: s.LocalCommitTx},
		signed.CommitSig,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	commitments := Commitments{
		ChannelVersion: s.ChannelVersion,
		LocalParams:    s.LocalParams,
		RemoteParams:   s.RemoteParams,
		ChannelFlags:   s.ChannelFlags,
		ChannelID:      s.ChannelID,
		LocalCommit: LocalCommit{
			Index:          0,
			Spec:           s.LocalSpec,
			PublishableTxs: publishable,
		},
		RemoteCommit: s.RemoteCommit,
		RemoteNextCommitInfo: fn.NewRight[WaitingForRevocation](
			s.RemoteCommit.RemotePerCommitmentPoint,
		),
		CommitInput:                s.CommitInput,
		RemotePerCommitmentSecrets: *shachain.NewRevocationStore(),
		OriginChannels: make(
			map[uint64]lnwire.ShortChannelID,
		),
	}

	next := &WaitForFundingConfirmed{
		stateCommon:  s.stateCommon,
		Commitments:  commitments,
		FundingTx:    s.FundingTx,
		WaitingSince: s.clk.Now().Unix(),
		MinDepth:     s.MinDepth,
		LastSent: fn.NewLeft[*lnwire.FundingCreated, *lnwire.FundingSigned](
			s.LastSent,
		),
	}

	actions := []Action{
		&ActionSendWatch{Watch: &WatchSpent{
			OutPoint: s.CommitInput.OutPoint,
			PkScript: s.CommitInput.TxOut.PkScript,
		}},
		&ActionSendWatch{Watch: &WatchConfirmed{
			Txid:     s.CommitInput.OutPoint.Hash,
			PkScript: s.CommitInput.TxOut.PkScript,
			MinDepth: s.MinDepth,
		}},
		&ActionStoreState{State: next},
		&ActionPublishTx{Tx: s.FundingTx, Label: "funding"},
	}

	return next, actions
}

// Process waits out the funding confirmation, defers an early
// FundingLocked, and reacts to the confirmation by announcing our own
// FundingLocked.
func (s *WaitForFundingConfirmed) Process(event Event) (ChannelState,
	[]Action) {

	switch e := event.(type) {
	case *EventMessageReceived:
		locked, ok := e.Msg.(*lnwire.FundingLocked)
		if !ok {
			return unhandled(s, event)
		}

		next := *s
		next.Deferred = locked
		return &next, nil

	case *EventWatchConfirmed:
		return s.processConfirmation(e)

	case *EventWatchSpent:
		// A spend of the funding output before the channel is usable
		// requires the force-close publication path, which lives
		// outside this state machine for now.
		log.Warnf("ChannelID(%v): funding output spent by %v while "+
			"waiting for confirmation", s.Commitments.ChannelID,
			e.Tx.TxHash())
		return s, nil

	case *EventFundingTimeout:
		// Only the fundee forgets the channel, the funder's money is
		// in the funding transaction.
		if s.Commitments.LocalParams.IsFunder {
			return unhandled(s, event)
		}

		next := &Aborted{stateCommon: s.stateCommon}
		actions := []Action{
			&ActionHandleError{Err: ErrFundingTimeout},
			&ActionStoreState{State: next},
		}
		return next, actions

	default:
		return unhandled(s, event)
	}
}

// ErrFundingTimeout is reported when the funding transaction fails to
// confirm within FundingTimeoutFundee.
var ErrFundingTimeout = errFundingTimeout{}

type errFundingTimeout struct{}

func (errFundingTimeout) Error() string {
	return "funding transaction was not confirmed in time"
}

// processConfirmation verifies the confirmed funding transaction and moves
// on to exchanging FundingLocked.
func (s *WaitForFundingConfirmed) processConfirmation(
	e *EventWatchConfirmed) (ChannelState, []Action) {

	fundingOut := s.Commitments.CommitInput.OutPoint

	// Verify that the confirmed transaction is the funding transaction
	// and actually carries the funding output.
	err := checkFundingTx(e.Tx, s.Commitments.CommitInput)
	if err != nil {
		if s.StaticParams.NodeParams.IsRegtest {
			log.Debugf("ChannelID(%v): ignoring funding tx "+
				"verification failure on regtest: %v",
				s.Commitments.ChannelID, err)
		} else {
			return s, []Action{&ActionHandleError{Err: err}}
		}
	}

	shortChanID := lnwire.ShortChannelID{
		BlockHeight: e.BlockHeight,
		TxIndex:     e.TxIndex,
		TxPosition:  uint16(fundingOut.Index),
	}

	// The pair of commitment points sent within FundingLocked uses
	// index 1.
	path := s.Commitments.channelKeyPath(s.keyMgr)
	nextPoint, err := s.keyMgr.CommitmentPoint(path, 1)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	fundingLocked := lnwire.NewFundingLocked(
		s.Commitments.ChannelID, nextPoint,
	)

	next := &WaitForFundingLocked{
		stateCommon:    s.stateCommon,
		Commitments:    s.Commitments,
		ShortChannelID: shortChanID,
		LastSent:       fundingLocked,
	}

	actions := []Action{
		&ActionSendWatch{Watch: &WatchLost{
			Txid: fundingOut.Hash,
		}},
		&ActionSendMessage{Msg: fundingLocked},
		&ActionStoreState{State: next},
	}

	// An early FundingLocked was deferred until our own confirmation,
	// replay it against the next state.
	if s.Deferred != nil {
		final, more := next.Process(&EventMessageReceived{
			Msg: s.Deferred,
		})
		return final, append(actions, more...)
	}

	return next, actions
}

// checkFundingTx verifies that the confirmed transaction pays the negotiated
// funding script at the funding outpoint.
func checkFundingTx(tx *wire.MsgTx, input FundingInput) error {
	if tx == nil {
		return &ErrFundingOutputMismatch{
			OutputIndex: input.OutPoint.Index,
		}
	}

	if tx.TxHash() != input.OutPoint.Hash ||
		int(input.OutPoint.Index) >= len(tx.TxOut) {

		return &ErrFundingOutputMismatch{
			OutputIndex: input.OutPoint.Index,
		}
	}

	out := tx.TxOut[input.OutPoint.Index]
	if out.Value != input.TxOut.Value ||
		!bytes.Equal(out.PkScript, input.TxOut.PkScript) {

		return &ErrFundingOutputMismatch{
			OutputIndex: input.OutPoint.Index,
		}
	}

	return nil
}

// Process waits for the remote's FundingLocked and then enters normal
// operation.
func (s *WaitForFundingLocked) Process(event Event) (ChannelState, []Action) {
	msg, ok := event.(*EventMessageReceived)
	if !ok {
		return unhandled(s, event)
	}
	locked, ok := msg.Msg.(*lnwire.FundingLocked)
	if !ok {
		return unhandled(s, event)
	}

	commitments := s.Commitments
	commitments.RemoteNextCommitInfo = fn.NewRight[WaitingForRevocation](
		locked.NextPerCommitmentPoint,
	)

	next := &Normal{
		stateCommon:    s.stateCommon,
		Commitments:    commitments,
		ShortChannelID: s.ShortChannelID,
		Buried:         false,
	}

	actions := []Action{
		&ActionSendWatch{Watch: &WatchConfirmed{
			Txid:     s.Commitments.CommitInput.OutPoint.Hash,
			PkScript: s.Commitments.CommitInput.TxOut.PkScript,
			MinDepth: AnnouncementsMinConf,
		}},
		&ActionStoreState{State: next},
	}

	return next, actions
}
