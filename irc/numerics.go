package irc

// Numeric replies used by the server
const (
	RPL_WELCOME       = 1
	RPL_YOURHOST      = 2
	RPL_CREATED       = 3
	RPL_MYINFO        = 4
	RPL_ISUPPORT      = 5
	RPL_UMODEIS       = 221
	RPL_CHANNELMODEIS = 324
	RPL_CREATIONTIME  = 329
	RPL_NOTOPIC       = 331
	RPL_INVITELIST    = 346
	RPL_ENDOFINVITE   = 347
	RPL_EXCEPTLIST    = 348
	RPL_ENDOFEXCEPT   = 349
	RPL_NAMREPLY      = 353
	RPL_ENDOFNAMES    = 366
	RPL_BANLIST       = 367
	RPL_ENDOFBANLIST  = 368
	RPL_YOUREOPER     = 381
	RPL_REHASHING     = 382

	ERR_NOSUCHNICK        = 401
	ERR_NOSUCHCHANNEL     = 403
	ERR_INVALIDCAPCMD     = 410
	ERR_UNKNOWNCOMMAND    = 421
	ERR_NONICKNAMEGIVEN   = 431
	ERR_ERRONEUSNICKNAME  = 432
	ERR_NICKNAMEINUSE     = 433
	ERR_USERNOTINCHANNEL  = 441
	ERR_NOTONCHANNEL      = 442
	ERR_NOTREGISTERED     = 451
	ERR_NEEDMOREPARAMS    = 461
	ERR_ALREADYREGISTERED = 462
	ERR_PASSWDMISMATCH    = 464
	ERR_CHANNELISFULL     = 471
	ERR_UNKNOWNMODE       = 472
	ERR_INVITEONLYCHAN    = 473
	ERR_BANNEDFROMCHAN    = 474
	ERR_BADCHANNELKEY     = 475
	ERR_BANLISTFULL       = 478
	ERR_NOPRIVILEGES      = 481
	ERR_CHANOPRIVSNEEDED  = 482
	ERR_NOOPERHOST        = 491
	ERR_UMODEUNKNOWNFLAG  = 501
	ERR_USERSDONTMATCH    = 502
)
